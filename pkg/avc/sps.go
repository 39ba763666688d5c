// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import (
	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/naza/pkg/nazabits"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// ISO-14496-10.pdf
// 7.3.2.1 Sequence parameter set RBSP syntax
type Sps struct {
	ProfileIdc uint8
	LevelIdc   uint8
	SpsId      uint32

	ChromaFormatIdc uint32
	BitDepthLuma    uint32
	BitDepthChroma  uint32

	Log2MaxFrameNumMinus4 uint32
	PicOrderCntType       uint32
	NumRefFrames          uint32

	PicWidthInMbsMinusOne       uint32
	PicHeightInMapUnitsMinusOne uint32
	FrameMbsOnlyFlag            uint8

	FrameCroppingFlag     uint8
	FrameCropLeftOffset   uint32
	FrameCropRightOffset  uint32
	FrameCropTopOffset    uint32
	FrameCropBottomOffset uint32
}

// ParseSps
//
// @param payload: 包含1字节nal header的sps
func ParseSps(payload []byte, ctx *Context) error {
	br := nazabits.NewBitReader(removeEmulationPrevention(payload))
	var sps Sps
	if err := parseSps(&br, &sps); err != nil {
		base.Log.Debugf("parse sps failed. err=%+v, len=%d", err, len(payload))
		return err
	}

	ctx.Profile = sps.ProfileIdc
	ctx.Level = sps.LevelIdc

	cropUnitX := uint32(1)
	cropUnitY := 2 - uint32(sps.FrameMbsOnlyFlag)
	switch sps.ChromaFormatIdc {
	case 1:
		cropUnitX = 2
		cropUnitY *= 2
	case 2:
		cropUnitX = 2
	}
	width := (sps.PicWidthInMbsMinusOne + 1) * 16
	height := (2 - uint32(sps.FrameMbsOnlyFlag)) * (sps.PicHeightInMapUnitsMinusOne + 1) * 16
	cropX := (sps.FrameCropLeftOffset + sps.FrameCropRightOffset) * cropUnitX
	cropY := (sps.FrameCropTopOffset + sps.FrameCropBottomOffset) * cropUnitY
	if cropX >= width || cropY >= height {
		return nazaerrors.Wrap(base.ErrAvc)
	}
	ctx.Width = width - cropX
	ctx.Height = height - cropY
	return nil
}

func parseSps(br *nazabits.BitReader, sps *Sps) error {
	t, err := br.ReadBits8(8)
	if err != nil {
		return nazaerrors.Wrap(err)
	}
	if t&0x1F != NaluUnitTypeSps {
		return nazaerrors.Wrap(base.ErrAvc)
	}

	if sps.ProfileIdc, err = br.ReadBits8(8); err != nil {
		return nazaerrors.Wrap(err)
	}
	// constraint_set0_flag ~ constraint_set5_flag, reserved_zero_2bits
	if _, err = br.ReadBits8(8); err != nil {
		return nazaerrors.Wrap(err)
	}
	if sps.LevelIdc, err = br.ReadBits8(8); err != nil {
		return nazaerrors.Wrap(err)
	}
	if sps.SpsId, err = br.ReadGolomb(); err != nil {
		return nazaerrors.Wrap(err)
	}
	if sps.SpsId >= 32 {
		return nazaerrors.Wrap(base.ErrAvc)
	}

	switch sps.ProfileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		if sps.ChromaFormatIdc, err = br.ReadGolomb(); err != nil {
			return nazaerrors.Wrap(err)
		}
		if sps.ChromaFormatIdc > 3 {
			return nazaerrors.Wrap(base.ErrAvc)
		}
		if sps.ChromaFormatIdc == 3 {
			// separate_colour_plane_flag
			if _, err = br.ReadBits8(1); err != nil {
				return nazaerrors.Wrap(err)
			}
		}
		if sps.BitDepthLuma, err = br.ReadGolomb(); err != nil {
			return nazaerrors.Wrap(err)
		}
		sps.BitDepthLuma += 8
		if sps.BitDepthChroma, err = br.ReadGolomb(); err != nil {
			return nazaerrors.Wrap(err)
		}
		sps.BitDepthChroma += 8
		// qpprime_y_zero_transform_bypass_flag
		if _, err = br.ReadBits8(1); err != nil {
			return nazaerrors.Wrap(err)
		}
		flag, err := br.ReadBits8(1)
		if err != nil {
			return nazaerrors.Wrap(err)
		}
		if flag == 1 {
			n := 8
			if sps.ChromaFormatIdc == 3 {
				n = 12
			}
			for i := 0; i < n; i++ {
				present, err := br.ReadBits8(1)
				if err != nil {
					return nazaerrors.Wrap(err)
				}
				if present == 0 {
					continue
				}
				size := 16
				if i >= 6 {
					size = 64
				}
				if err = skipScalingList(br, size); err != nil {
					return err
				}
			}
		}
	default:
		sps.ChromaFormatIdc = 1
		sps.BitDepthLuma = 8
		sps.BitDepthChroma = 8
	}

	if sps.Log2MaxFrameNumMinus4, err = br.ReadGolomb(); err != nil {
		return nazaerrors.Wrap(err)
	}
	if sps.Log2MaxFrameNumMinus4 > 12 {
		return nazaerrors.Wrap(base.ErrAvc)
	}
	if sps.PicOrderCntType, err = br.ReadGolomb(); err != nil {
		return nazaerrors.Wrap(err)
	}
	switch sps.PicOrderCntType {
	case 0:
		// log2_max_pic_order_cnt_lsb_minus4
		if _, err = br.ReadGolomb(); err != nil {
			return nazaerrors.Wrap(err)
		}
	case 1:
		// delta_pic_order_always_zero_flag
		if _, err = br.ReadBits8(1); err != nil {
			return nazaerrors.Wrap(err)
		}
		// offset_for_non_ref_pic, offset_for_top_to_bottom_field
		if _, err = br.ReadGolomb(); err != nil {
			return nazaerrors.Wrap(err)
		}
		if _, err = br.ReadGolomb(); err != nil {
			return nazaerrors.Wrap(err)
		}
		cycle, err := br.ReadGolomb()
		if err != nil {
			return nazaerrors.Wrap(err)
		}
		if cycle > 255 {
			return nazaerrors.Wrap(base.ErrAvc)
		}
		for i := uint32(0); i < cycle; i++ {
			if _, err = br.ReadGolomb(); err != nil {
				return nazaerrors.Wrap(err)
			}
		}
	case 2:
	default:
		return nazaerrors.Wrap(base.ErrAvc)
	}

	if sps.NumRefFrames, err = br.ReadGolomb(); err != nil {
		return nazaerrors.Wrap(err)
	}
	// gaps_in_frame_num_value_allowed_flag
	if _, err = br.ReadBits8(1); err != nil {
		return nazaerrors.Wrap(err)
	}
	if sps.PicWidthInMbsMinusOne, err = br.ReadGolomb(); err != nil {
		return nazaerrors.Wrap(err)
	}
	if sps.PicHeightInMapUnitsMinusOne, err = br.ReadGolomb(); err != nil {
		return nazaerrors.Wrap(err)
	}
	if sps.FrameMbsOnlyFlag, err = br.ReadBits8(1); err != nil {
		return nazaerrors.Wrap(err)
	}
	if sps.FrameMbsOnlyFlag == 0 {
		// mb_adaptive_frame_field_flag
		if _, err = br.ReadBits8(1); err != nil {
			return nazaerrors.Wrap(err)
		}
	}
	// direct_8x8_inference_flag
	if _, err = br.ReadBits8(1); err != nil {
		return nazaerrors.Wrap(err)
	}
	if sps.FrameCroppingFlag, err = br.ReadBits8(1); err != nil {
		return nazaerrors.Wrap(err)
	}
	if sps.FrameCroppingFlag == 1 {
		if sps.FrameCropLeftOffset, err = br.ReadGolomb(); err != nil {
			return nazaerrors.Wrap(err)
		}
		if sps.FrameCropRightOffset, err = br.ReadGolomb(); err != nil {
			return nazaerrors.Wrap(err)
		}
		if sps.FrameCropTopOffset, err = br.ReadGolomb(); err != nil {
			return nazaerrors.Wrap(err)
		}
		if sps.FrameCropBottomOffset, err = br.ReadGolomb(); err != nil {
			return nazaerrors.Wrap(err)
		}
	}
	// vui不关心
	return nil
}

// 7.3.2.1.1.1 Scaling list syntax
func skipScalingList(br *nazabits.BitReader, size int) error {
	last, next := 8, 8
	for j := 0; j < size; j++ {
		if next != 0 {
			v, err := br.ReadGolomb()
			if err != nil {
				return nazaerrors.Wrap(err)
			}
			next = (last + signedGolomb(v) + 256) % 256
		}
		if next != 0 {
			last = next
		}
	}
	return nil
}

func signedGolomb(v uint32) int {
	if v&1 == 1 {
		return int((v + 1) / 2)
	}
	return -int(v / 2)
}

// removeEmulationPrevention 去除 0x000003 中的 0x03
func removeEmulationPrevention(b []byte) []byte {
	out := make([]byte, 0, len(b))
	zeros := 0
	for _, c := range b {
		if zeros >= 2 && c == 0x03 {
			zeros = 0
			continue
		}
		if c == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, c)
	}
	return out
}

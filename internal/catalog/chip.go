// internal/catalog/chip.go
package catalog

import "fmt"

// Group names of the chip register, in panel order.
const (
	GroupCSHEnable   = "CSH EN"
	GroupPIEnable    = "PI EN"
	GroupPIDelay     = "PI DELAY CTRL"
	GroupPIControl   = "PI CTRL"
	GroupCurrent     = "CURRENT CTRL"
	GroupEnables     = "ENABLES & RESET"
	GroupFilter      = "FILTER"
	GroupTestNetwork = "TEST NETWORK"
	GroupSpare       = "SPARE"
)

// chip is built once at start-up; a bad declaration panics before any encode.
var chip = MustNew(chipFields())

// Chip returns the catalog of the 128-bit configuration register.
// Every bit 127..0 is owned by exactly one field.
func Chip() *Catalog { return chip }

func chipFields() []FieldSpec {
	var fs []FieldSpec

	// bits 127..120: CSH_EN_8 .. CSH_EN_1
	for ch := 8; ch >= 1; ch-- {
		fs = append(fs, FieldSpec{
			Name:   fmt.Sprintf("CSH_EN_%d", ch),
			Group:  GroupCSHEnable,
			Offset: uint(119 + ch),
			Width:  1,
			Domain: Flag,
			Help:   fmt.Sprintf("charge-sharing channel %d enable", ch),
		})
	}

	// bits 119..112: PI_EN_8 .. PI_EN_1
	for ch := 8; ch >= 1; ch-- {
		fs = append(fs, FieldSpec{
			Name:   fmt.Sprintf("PI_EN_%d", ch),
			Group:  GroupPIEnable,
			Offset: uint(111 + ch),
			Width:  1,
			Domain: Flag,
			Help:   fmt.Sprintf("phase interpolator channel %d enable", ch),
		})
	}

	fs = append(fs,
		multi("PI_DC_CTRL", GroupPIControl, 111, 3, "phase interpolator DC control"),
		multi("PI_CAP_CTRL", GroupPIControl, 108, 5, "phase interpolator capacitor control"),
	)

	// bits 103..48: eight 7-bit delay controls, channel 1 first
	for ch := 1; ch <= 8; ch++ {
		msb := uint(103 - 7*(ch-1))
		fs = append(fs, multi(
			fmt.Sprintf("PI_DELAY_CTRL%d", ch), GroupPIDelay, msb, 7,
			fmt.Sprintf("phase interpolator channel %d delay", ch),
		))
	}

	fs = append(fs,
		multi("PI_SUM_DELAY_CTRL", GroupPIControl, 47, 7, "summed output delay"),
		multi("PI_TEST_DELAY_CTRL", GroupPIControl, 40, 3, "test path delay"),

		bit("BPF_SAMP_EN", GroupFilter, 37, "band-pass filter sampling enable"),
		bit("BPF_EN", GroupFilter, 36, "band-pass filter enable"),
		bit("LPF_SAMP_EN", GroupFilter, 35, "low-pass filter sampling enable"),
		bit("LPF_EN", GroupFilter, 34, "low-pass filter enable"),

		multi("BGR_OUT_CTRL", GroupCurrent, 33, 3, "bandgap reference output control"),
		multi("CSH_ICTRL", GroupCurrent, 30, 3, "charge-sharing bias current"),
		multi("PI_ICTRL", GroupCurrent, 27, 3, "phase interpolator bias current"),
		multi("DEMOD_ICTRL", GroupCurrent, 24, 3, "demodulator bias current"),
		multi("BUFF_ICTRL", GroupCurrent, 21, 3, "output buffer bias current"),

		bit("SUM_PI_EN", GroupEnables, 18, "summed phase interpolator enable"),
		bit("DEMOD_ICH_EN", GroupEnables, 17, "demodulator I channel enable"),
		bit("DEMOD_QCH_EN", GroupEnables, 16, "demodulator Q channel enable"),
		bit("LVDS_RES_CTRL", GroupEnables, 15, "LVDS termination select"),
		bit("BUFF_EN", GroupEnables, 14, "output buffer enable"),
		bit("IQ_DIV_EN", GroupEnables, 13, "IQ divider enable"),
		bit("IQ_DIV_RST", GroupEnables, 12, "IQ divider reset"),
		bit("CSH_TEST_EN", GroupTestNetwork, 11, "charge-sharing test enable"),
		bit("CSH_VCM_EN", GroupEnables, 10, "charge-sharing VCM enable"),
		bit("PI_TEST_EN", GroupTestNetwork, 9, "phase interpolator test enable"),

		multi("TEST_ADD", GroupTestNetwork, 8, 4, "test address select"),
		multi("TMUX_SEL", GroupTestNetwork, 4, 4, "test multiplexer select"),

		bit("SPARE", GroupSpare, 0, "spare bit"),
	)

	return fs
}

// multi declares a full-range unsigned field by its most significant bit.
func multi(name, group string, msb, width uint, help string) FieldSpec {
	return FieldSpec{
		Name:   name,
		Group:  group,
		Offset: msb - width + 1,
		Width:  width,
		Domain: Bits(width),
		Help:   help,
	}
}

func bit(name, group string, pos uint, help string) FieldSpec {
	return FieldSpec{Name: name, Group: group, Offset: pos, Width: 1, Domain: Flag, Help: help}
}

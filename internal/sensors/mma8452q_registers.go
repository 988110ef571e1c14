// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

// MMA8452Q register addresses.
const (
	MMA8452QDefaultAddr uint16 = 0x1D

	regStatus     byte = 0x00
	regSysMod     byte = 0x0B
	regIntSource  byte = 0x0C
	regWhoAmI     byte = 0x0D
	regXYZDataCfg byte = 0x0E
	regCtrlReg1   byte = 0x2A
	regCtrlReg2   byte = 0x2B

	whoAmIValue byte = 0x2A
)

// CTRL_REG1 bits.
const (
	odr800     byte = 0x00
	modeActive byte = 0x01
)

// XYZ_DATA_CFG full scale.
const fullScale2G byte = 0x00

// BitField describes one field within a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo describes one device register.
type RegisterInfo struct {
	Address     byte       `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// MMA8452QRegisterMap returns metadata for the registers the driver touches
// or that are useful when checking wiring.
func MMA8452QRegisterMap() []RegisterInfo {
	return []RegisterInfo{
		// Data
		{Address: regStatus, Name: "STATUS", Description: "Data status", Access: "R", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "ZYXOW", Description: "X, Y, Z data overwrite", Values: "0=No overwrite, 1=Overwritten"},
				{Bits: "3", Name: "ZYXDR", Description: "X, Y, Z data ready", Values: "0=Not ready, 1=New set available"},
			}},
		{Address: 0x01, Name: "OUT_X_MSB", Description: "X-axis data [11:4]", Access: "R", Default: "0x00"},
		{Address: 0x02, Name: "OUT_X_LSB", Description: "X-axis data [3:0] left-justified", Access: "R", Default: "0x00"},
		{Address: 0x03, Name: "OUT_Y_MSB", Description: "Y-axis data [11:4]", Access: "R", Default: "0x00"},
		{Address: 0x04, Name: "OUT_Y_LSB", Description: "Y-axis data [3:0] left-justified", Access: "R", Default: "0x00"},
		{Address: 0x05, Name: "OUT_Z_MSB", Description: "Z-axis data [11:4]", Access: "R", Default: "0x00"},
		{Address: 0x06, Name: "OUT_Z_LSB", Description: "Z-axis data [3:0] left-justified", Access: "R", Default: "0x00"},

		// System
		{Address: regSysMod, Name: "SYSMOD", Description: "System mode", Access: "R", Default: "0x00",
			BitFields: []BitField{
				{Bits: "1:0", Name: "SYSMOD", Description: "Current mode", Values: "0=Standby, 1=Wake, 2=Sleep"},
			}},
		{Address: regIntSource, Name: "INT_SOURCE", Description: "Interrupt status", Access: "R", Default: "0x00"},
		{Address: regWhoAmI, Name: "WHO_AM_I", Description: "Device ID", Access: "R", Default: "0x2A"},

		// Configuration
		{Address: regXYZDataCfg, Name: "XYZ_DATA_CFG", Description: "Data configuration", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "4", Name: "HPF_OUT", Description: "High-pass filtered output", Values: "0=Disabled, 1=Enabled"},
				{Bits: "1:0", Name: "FS", Description: "Full scale range", Values: "0=±2g, 1=±4g, 2=±8g"},
			}},
		{Address: regCtrlReg1, Name: "CTRL_REG1", Description: "Control register 1", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:6", Name: "ASLP_RATE", Description: "Auto-sleep rate", Values: "0=50Hz, 1=12.5Hz, 2=6.25Hz, 3=1.56Hz"},
				{Bits: "5:3", Name: "DR", Description: "Output data rate", Values: "0=800Hz, 1=400Hz, 2=200Hz, 3=100Hz, 4=50Hz, 5=12.5Hz, 6=6.25Hz, 7=1.56Hz"},
				{Bits: "2", Name: "LNOISE", Description: "Reduced noise mode", Values: "0=Normal, 1=Reduced noise"},
				{Bits: "1", Name: "F_READ", Description: "Fast read (8-bit)", Values: "0=Normal, 1=Fast read"},
				{Bits: "0", Name: "ACTIVE", Description: "Mode", Values: "0=Standby, 1=Active"},
			}},
		{Address: regCtrlReg2, Name: "CTRL_REG2", Description: "Control register 2", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "6", Name: "RST", Description: "Software reset", Values: "0=Disabled, 1=Reset"},
				{Bits: "1:0", Name: "MODS", Description: "Active oversampling mode", Values: "0=Normal, 1=Low noise low power, 2=High res, 3=Low power"},
			}},
	}
}

package sensors

// DefaultDefinitions is the production sensor table for the SOLSMART inverter.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Prefix: MustParsePrefix("FFFFFF080C01"), Name: "Mains Voltage", Divisor: 10, Unit: "V", DeviceClass: "voltage"},
		{Prefix: MustParsePrefix("FFFFFF060C01"), Name: "Battery Voltage", Divisor: 100, Unit: "V", DeviceClass: "voltage"},
		{Prefix: MustParsePrefix("FFFFFF100C01"), Name: "Charge Current", Divisor: 10, Unit: "A", DeviceClass: "current"},
		{Prefix: MustParsePrefix("FFFFFF0C0C01"), Name: "Discharge Current", Divisor: 10, Unit: "A", DeviceClass: "current"},
		// power_factor is the closest Home Assistant class for a load percentage
		{Prefix: MustParsePrefix("FFFFFF2C0C01"), Name: "Load Percentage", Divisor: 1, Unit: "%", DeviceClass: "power_factor"},
		// 100% is reported as roughly 30000, so full charge publishes slightly above 100
		{Prefix: MustParsePrefix("FFFFFF3C0C01"), Name: "Battery Charge Level", Divisor: 297, Unit: "%", DeviceClass: "battery"},
	}
}

// probePrefixes are every opcode seen while sniffing the vendor app.
var probePrefixes = []string{
	"FF0100340C00", "FF0B00220C00", "FF8A8F360C00",
	"FFFFFF060C01", "FFFFFF080C01", "FFFFFF0C0C01", "FFFFFF100C01",
	"FFFFFF160C01", "FFFFFF1C0C01", "FFFFFF1E0C01", "FFFFFF280C01",
	"FFFFFF2C0C01", "FFFFFF300C01", "FFFFFF320C01", "FFFFFF380C01",
	"FFFFFF3C0C01", "FFFFFF740C01", "FFFFFF760C01", "FFFFFF8A0C01",
	"FFFFFF900C01", "FFFFFF960C01", "FFFFFFB00B01", "FFFFFFC80B01",
	"FFFFFFCA0B01", "FFFFFFCC0B01",
}

// ProbeDefinitions returns raw (divisor 1) definitions for every known opcode,
// each named after its prefix. Used for protocol exploration.
func ProbeDefinitions() []Definition {
	defs := make([]Definition, 0, len(probePrefixes))
	for _, s := range probePrefixes {
		p := MustParsePrefix(s)
		defs = append(defs, Definition{Prefix: p, Name: p.String(), Divisor: 1})
	}
	return defs
}

// Default returns a registry over DefaultDefinitions.
func Default() *Registry {
	r, err := New(DefaultDefinitions())
	if err != nil {
		panic(err)
	}
	return r
}

// Probe returns a registry over ProbeDefinitions.
func Probe() *Registry {
	r, err := New(ProbeDefinitions())
	if err != nil {
		panic(err)
	}
	return r
}

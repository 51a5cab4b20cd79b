package actions

// TableProperties holds the subset of table configuration this module
// interprets. Everything else in metaData.configuration passes through
// untouched.
type TableProperties struct {
	EnableChangeDataFeed bool
	ColumnMappingMode    string
}

func ParseTableProperties(configuration map[string]string) TableProperties {
	props := TableProperties{
		ColumnMappingMode: "none",
	}
	if v, ok := configuration["delta.enableChangeDataFeed"]; ok {
		props.EnableChangeDataFeed = v == "true"
	}
	if v, ok := configuration["delta.columnMapping.mode"]; ok && v != "" {
		props.ColumnMappingMode = v
	}
	return props
}

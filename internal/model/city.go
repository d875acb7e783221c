package model

// CityTarget describes one search scope.
type CityTarget struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Country string `yaml:"country" mapstructure:"country"`
	Region  string `yaml:"region,omitempty" mapstructure:"region"`
}

// DisplayName returns "name, region, country", or "name, country" when no
// region is set.
func (c CityTarget) DisplayName() string {
	if c.Region != "" {
		return c.Name + ", " + c.Region + ", " + c.Country
	}
	return c.Name + ", " + c.Country
}

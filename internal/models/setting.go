package models

type ConfigurationSetting struct {
	Base
	Key   string `gorm:"size:100;not null;uniqueIndex" json:"key"`
	Value string `gorm:"size:255;not null" json:"value"`
}

func (s *ConfigurationSetting) UpdateFrom(o *ConfigurationSetting) {
	s.Key = o.Key
	s.Value = o.Value
}

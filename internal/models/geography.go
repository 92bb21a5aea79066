package models

import "github.com/google/uuid"

type GeographicLevel struct {
	Base
	Code        string `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name        string `gorm:"size:100;not null" json:"name"`
	LevelNumber int    `gorm:"not null" json:"levelNumber"`
}

func (l *GeographicLevel) UpdateFrom(o *GeographicLevel) {
	l.Code = o.Code
	l.Name = o.Name
	l.LevelNumber = o.LevelNumber
}

type GeographicZone struct {
	Base
	Code                string           `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name                string           `gorm:"size:100" json:"name"`
	LevelID             uuid.UUID        `gorm:"type:uuid;not null" json:"levelId"`
	Level               *GeographicLevel `gorm:"foreignKey:LevelID" json:"level,omitempty"`
	ParentID            *uuid.UUID       `gorm:"type:uuid" json:"parentId"`
	Parent              *GeographicZone  `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	CatchmentPopulation *int             `json:"catchmentPopulation"`
	Latitude            *float64         `json:"latitude"`
	Longitude           *float64         `json:"longitude"`
}

func (z *GeographicZone) UpdateFrom(o *GeographicZone) {
	z.Code = o.Code
	z.Name = o.Name
	z.LevelID = o.LevelID
	z.ParentID = o.ParentID
	z.CatchmentPopulation = o.CatchmentPopulation
	z.Latitude = o.Latitude
	z.Longitude = o.Longitude
}

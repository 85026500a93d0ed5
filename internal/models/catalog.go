package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Grade is a school year; Ordinal orders grades for level ranges.
type Grade struct {
	ID      string `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Ordinal int    `db:"ordinal" json:"ordinal"`
}

// Convocatoria is a time-boxed competition edition.
type Convocatoria struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	StartsAt           time.Time `db:"starts_at" json:"startsAt"`
	EndsAt             time.Time `db:"ends_at" json:"endsAt"`
	MaxAreasPerStudent int       `db:"max_areas_per_student" json:"maxAreasPerStudent"`
}

// IsOpen reports whether registrations are accepted at t.
func (c Convocatoria) IsOpen(t time.Time) bool {
	return !t.Before(c.StartsAt) && !t.After(c.EndsAt)
}

// AreaOffering is an area made available within a convocatoria at a cost.
type AreaOffering struct {
	ID             string          `db:"id" json:"id"`
	ConvocatoriaID string          `db:"convocatoria_id" json:"convocatoriaId"`
	AreaID         string          `db:"area_id" json:"areaId"`
	AreaName       string          `db:"area_name" json:"areaName"`
	Cost           decimal.Decimal `db:"cost" json:"cost"`
}

// LevelOffering is a level within an area offering restricted to a grade range.
type LevelOffering struct {
	ID             string `db:"id" json:"id"`
	AreaOfferingID string `db:"area_offering_id" json:"areaOfferingId"`
	LevelID        string `db:"level_id" json:"levelId"`
	LevelName      string `db:"level_name" json:"levelName"`
	MinGradeID     string `db:"min_grade_id" json:"minGradeId"`
	MaxGradeID     string `db:"max_grade_id" json:"maxGradeId"`
	MinOrdinal     int    `db:"min_ordinal" json:"minOrdinal"`
	MaxOrdinal     int    `db:"max_ordinal" json:"maxOrdinal"`
}

// AcceptsGrade reports whether a grade ordinal falls inside the inclusive range.
func (l LevelOffering) AcceptsGrade(ordinal int) bool {
	return ordinal >= l.MinOrdinal && ordinal <= l.MaxOrdinal
}

// Offering is a validated (area, level) pair together with its convocatoria.
type Offering struct {
	Area         AreaOffering  `json:"area"`
	Level        LevelOffering `json:"level"`
	Convocatoria Convocatoria  `json:"convocatoria"`
}

// OfferingListing is the cached catalog view of one area offering.
type OfferingListing struct {
	AreaOffering
	Levels []LevelOffering `json:"levels"`
}

// CatalogKind names the catalog entities whose dependents can be counted.
type CatalogKind string

// Supported catalog kinds.
const (
	CatalogKindAreaOffering  CatalogKind = "area-offerings"
	CatalogKindLevelOffering CatalogKind = "level-offerings"
)

// Dependents counts rows referencing a catalog entry.
type Dependents struct {
	Kind        CatalogKind `json:"kind"`
	ID          string      `json:"id"`
	Enrollments int         `db:"enrollments" json:"enrollments"`
	ListDetails int         `db:"list_details" json:"listDetails"`
}

// Deletable reports whether no enrollment or list detail references the entry.
func (d Dependents) Deletable() bool {
	return d.Enrollments == 0 && d.ListDetails == 0
}

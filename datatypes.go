package covidcounty

import (
	"fmt"
	"time"

	"gopkg.in/guregu/null.v3"
)

// DataTypes are the types of data a Vector can hold
type DataTypes uint8

// values of DataTypes
const (
	DTunknown DataTypes = 0 + iota
	DTstring
	DTfloat
	DTint
	DTdate // keep as last entry
)

// MaxDT is max value of DataTypes type
const MaxDT = DTdate

var dtNames = []string{"DTunknown", "DTstring", "DTfloat", "DTint", "DTdate"}

func (d DataTypes) String() string {
	if d > MaxDT {
		return fmt.Sprintf("DataTypes(%d)", uint8(d))
	}

	return dtNames[d]
}

func DTFromString(nm string) DataTypes {
	pos := position(nm, dtNames)
	if pos < 0 {
		return DTunknown
	}

	return DataTypes(uint8(pos))
}

func (d DataTypes) IsNumeric() bool {
	return d == DTfloat || d == DTint
}

// WhatAmI returns the DataTypes of val, which may be a scalar or a slice.
func WhatAmI(val any) DataTypes {
	switch val.(type) {
	case null.Float, []null.Float, float64:
		return DTfloat
	case null.Int, []null.Int, int, int64:
		return DTint
	case string, []string:
		return DTstring
	case time.Time, []time.Time:
		return DTdate
	default:
		return DTunknown
	}
}

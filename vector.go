package covidcounty

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/guregu/null.v3"
)

// Vector is a typed column of data. Numeric vectors are nullable so a missing value
// is carried explicitly rather than as a NaN.
type Vector struct {
	dt DataTypes

	data any
}

// NewVector wraps data, which must be one of []string, []null.Float, []null.Int, []time.Time.
func NewVector(data any) (*Vector, error) {
	var dt DataTypes
	if dt = WhatAmI(data); dt == DTunknown {
		return nil, fmt.Errorf("unsupported data type %T in NewVector", data)
	}

	switch data.(type) {
	case []string, []null.Float, []null.Int, []time.Time:
	default:
		return nil, fmt.Errorf("NewVector needs a slice, got %T", data)
	}

	return &Vector{dt: dt, data: data}, nil
}

func (v *Vector) VectorType() DataTypes {
	return v.dt
}

func (v *Vector) AsAny() any {
	return v.data
}

func (v *Vector) AsFloat() []null.Float {
	if v.dt == DTfloat {
		return v.data.([]null.Float)
	}

	if v.dt == DTint {
		xOut := make([]null.Float, v.Len())
		for ind, xx := range v.data.([]null.Int) {
			xOut[ind] = null.NewFloat(float64(xx.Int64), xx.Valid)
		}

		return xOut
	}

	panic(fmt.Errorf("cannot convert %s to Vector.AsFloat", v.dt))
}

func (v *Vector) AsInt() []null.Int {
	if v.dt == DTint {
		return v.data.([]null.Int)
	}

	panic(fmt.Errorf("cannot convert %s to Vector.AsInt", v.dt))
}

func (v *Vector) AsString() []string {
	if v.dt == DTstring {
		return v.data.([]string)
	}

	xOut := make([]string, v.Len())
	for ind := 0; ind < v.Len(); ind++ {
		xOut[ind] = v.ElementString(ind)
	}

	return xOut
}

func (v *Vector) AsDate() []time.Time {
	if v.dt == DTdate {
		return v.data.([]time.Time)
	}

	panic(fmt.Errorf("cannot convert %s to Vector.AsDate", v.dt))
}

// Element returns row indx. Missing numeric values come back as nil.
func (v *Vector) Element(indx int) any {
	if indx < 0 || indx >= v.Len() {
		panic(fmt.Errorf("index %d out of range", indx))
	}

	switch v.dt {
	case DTfloat:
		if x := v.data.([]null.Float)[indx]; x.Valid {
			return x.Float64
		}

		return nil
	case DTint:
		if x := v.data.([]null.Int)[indx]; x.Valid {
			return x.Int64
		}

		return nil
	case DTstring:
		return v.data.([]string)[indx]
	case DTdate:
		return v.data.([]time.Time)[indx]
	default:
		panic(fmt.Errorf("error in Element"))
	}
}

// ElementString formats row indx for a text file. Missing values are "".
func (v *Vector) ElementString(indx int) string {
	switch x := v.Element(indx).(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return x
	case time.Time:
		return x.Format(DateFormat)
	default:
		panic(fmt.Errorf("unexpected type %T in ElementString", x))
	}
}

// IsMissing is true for invalid numeric entries. Strings and dates are never missing.
func (v *Vector) IsMissing(indx int) bool {
	switch v.dt {
	case DTfloat:
		return !v.data.([]null.Float)[indx].Valid
	case DTint:
		return !v.data.([]null.Int)[indx].Valid
	default:
		return false
	}
}

func (v *Vector) Len() int {
	switch v.dt {
	case DTfloat:
		return len(v.data.([]null.Float))
	case DTint:
		return len(v.data.([]null.Int))
	case DTstring:
		return len(v.data.([]string))
	case DTdate:
		return len(v.data.([]time.Time))
	default:
		panic(fmt.Errorf("unexpected error in Vector.Len"))
	}
}

func (v *Vector) Copy() *Vector {
	vCopy := &Vector{dt: v.dt}
	switch v.dt {
	case DTfloat:
		x := make([]null.Float, v.Len())
		copy(x, v.data.([]null.Float))
		vCopy.data = x
	case DTint:
		x := make([]null.Int, v.Len())
		copy(x, v.data.([]null.Int))
		vCopy.data = x
	case DTstring:
		x := make([]string, v.Len())
		copy(x, v.data.([]string))
		vCopy.data = x
	case DTdate:
		x := make([]time.Time, v.Len())
		copy(x, v.data.([]time.Time))
		vCopy.data = x
	default:
		panic(fmt.Errorf("unexpected error in Vector.Copy"))
	}

	return vCopy
}

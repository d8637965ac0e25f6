// inject.go: Struct field injection from tagged import points
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
)

// ImportTag is the struct tag key marking import points.
//
//	type Editor struct {
//	    Renderer Renderer   `plughost:"import"`
//	    Tools    []Tool     `plughost:"import"`
//	    Theme    Theme      `plughost:"import,optional"`
//	    Palette  Palette    `plughost:"import,family=6f1c2a7e-4b0d-4d51-9a53-0c2f5e1d8a11"`
//	}
//
// A slice field imports every part of its element type. Other fields import
// exactly one part; optional fields are left untouched when none exists.
const ImportTag = "plughost"

// importPoint is one parsed tagged field.
type importPoint struct {
	index    int
	name     string
	many     bool
	optional bool
	familyID *uuid.UUID
	contract reflect.Type
}

func parseImportPoint(field reflect.StructField) (*importPoint, error) {
	tag, ok := field.Tag.Lookup(ImportTag)
	if !ok {
		return nil, nil
	}
	if !field.IsExported() {
		return nil, NewInvalidImportTagError(field.Name, tag, fmt.Errorf("field is not exported"))
	}

	items := strings.Split(tag, ",")
	if strings.TrimSpace(items[0]) != "import" {
		return nil, NewInvalidImportTagError(field.Name, tag, fmt.Errorf("tag must start with \"import\""))
	}

	point := &importPoint{
		index:    field.Index[0],
		name:     field.Name,
		contract: field.Type,
	}
	if field.Type.Kind() == reflect.Slice {
		point.many = true
		point.contract = field.Type.Elem()
	}

	for _, item := range items[1:] {
		item = strings.TrimSpace(item)
		switch {
		case item == "optional":
			point.optional = true
		case strings.HasPrefix(item, "family="):
			id, err := ParseGUID("family", strings.TrimPrefix(item, "family="))
			if err != nil {
				return nil, NewInvalidImportTagError(field.Name, tag, err)
			}
			point.familyID = &id
		case item == "":
		default:
			return nil, NewInvalidImportTagError(field.Name, tag, fmt.Errorf("unknown modifier %q", item))
		}
	}
	return point, nil
}

// inject fills the import points of target. A non-nil family scopes every
// import point that names no family of its own.
func inject(ctx context.Context, src Source, target any, family *uuid.UUID) error {
	value := reflect.ValueOf(target)
	if target == nil || value.Kind() != reflect.Pointer || value.IsNil() || value.Elem().Kind() != reflect.Struct {
		return NewInvalidInjectionTargetError(fmt.Sprintf("%T", target))
	}
	value = value.Elem()

	var points []*importPoint
	for i := 0; i < value.NumField(); i++ {
		point, err := parseImportPoint(value.Type().Field(i))
		if err != nil {
			return err
		}
		if point != nil {
			if point.familyID == nil {
				point.familyID = family
			}
			points = append(points, point)
		}
	}
	if len(points) == 0 {
		return nil
	}

	container, err := src.Container(ctx)
	if err != nil {
		return err
	}
	s := newScope(ctx, container)
	for _, point := range points {
		if err := s.fill(value.Field(point.index), point); err != nil {
			return err
		}
	}
	return nil
}

func (s *scope) fill(field reflect.Value, point *importPoint) error {
	if point.many {
		var filters []partFilter
		if point.familyID != nil {
			filters = append(filters, familyFilter(*point.familyID))
		}
		values, err := s.importAll(point.contract, filters...)
		if err != nil {
			return err
		}
		slice := reflect.MakeSlice(field.Type(), 0, len(values))
		for _, v := range values {
			slice = reflect.Append(slice, reflect.ValueOf(v))
		}
		field.Set(slice)
		return nil
	}

	var (
		resolved any
		found    bool
	)
	if point.familyID != nil {
		v, ok, err := s.ImportFamily(point.contract, *point.familyID)
		if err != nil {
			return err
		}
		resolved, found = v, ok
	} else {
		v, err := s.Import(point.contract)
		switch {
		case err == nil:
			resolved, found = v, true
		case !HasErrorCode(err, ErrCodeContractNotFound):
			return err
		}
	}

	if !found {
		if point.optional {
			return nil
		}
		return NewContractNotFoundError(ContractName(point.contract)).
			WithContext("field", point.name)
	}
	field.Set(reflect.ValueOf(resolved))
	return nil
}

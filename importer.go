// importer.go: Dependency access for part factories
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"context"
	"reflect"

	"github.com/google/uuid"
)

// Importer is handed to every part factory. Imports consult the armed
// dependencies of the current resolution first, then the container.
type Importer interface {
	// Context returns the context of the resolution, carrying armed values
	Context() context.Context

	// Import resolves exactly one value for contract
	Import(contract reflect.Type) (any, error)

	// ImportMany resolves every part serving contract
	ImportMany(contract reflect.Type) ([]any, error)

	// ImportFamily resolves the part serving contract within a family.
	// It reports false when the family has no such part.
	ImportFamily(contract reflect.Type, familyID uuid.UUID) (any, bool, error)
}

// Context implements Importer.
func (s *scope) Context() context.Context { return s.ctx }

// Import implements Importer.
func (s *scope) Import(contract reflect.Type) (any, error) {
	s.probe(contract)
	if value, ok := armedValue(s.ctx, contract); ok {
		return value, nil
	}
	return s.resolveSingle(contract)
}

// ImportMany implements Importer.
func (s *scope) ImportMany(contract reflect.Type) ([]any, error) {
	return s.importAll(contract)
}

// importAll instantiates every part serving contract that passes filters.
// An armed value comes first and only joins unfiltered imports.
func (s *scope) importAll(contract reflect.Type, filters ...partFilter) ([]any, error) {
	matches := s.container.partsFor(contract, filters...)
	values := make([]any, 0, len(matches)+1)
	if len(filters) == 0 {
		s.probe(contract)
		if value, ok := armedValue(s.ctx, contract); ok {
			values = append(values, value)
		}
	}
	for _, p := range matches {
		value, err := s.instantiate(p, contract)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// ImportFamily implements Importer.
func (s *scope) ImportFamily(contract reflect.Type, familyID uuid.UUID) (any, bool, error) {
	matches := s.container.partsFor(contract, familyFilter(familyID))
	if len(matches) == 0 {
		return nil, false, nil
	}
	if len(matches) > 1 {
		s.container.logger.Warn("Family resolves to more than one part, using first",
			"contract", ContractName(contract),
			"family_id", familyID.String(),
			"matches", len(matches))
	}
	value, err := s.instantiate(matches[0], contract)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Import resolves a D for a factory.
//
//	plughost.Provide[Handler](func(imp plughost.Importer) (Handler, error) {
//	    session, err := plughost.Import[Session](imp)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &handler{session: session}, nil
//	})
func Import[D any](imp Importer) (D, error) {
	var zero D
	value, err := imp.Import(reflect.TypeFor[D]())
	if err != nil {
		return zero, err
	}
	return value.(D), nil
}

// ImportOptional resolves a D when exactly one is available. Absence is not
// an error; ambiguity still is.
func ImportOptional[D any](imp Importer) (D, bool, error) {
	var zero D
	value, err := imp.Import(reflect.TypeFor[D]())
	if err != nil {
		if HasErrorCode(err, ErrCodeContractNotFound) {
			return zero, false, nil
		}
		return zero, false, err
	}
	return value.(D), true, nil
}

// ImportMany resolves every D for a factory.
func ImportMany[D any](imp Importer) ([]D, error) {
	values, err := imp.ImportMany(reflect.TypeFor[D]())
	if err != nil {
		return nil, err
	}
	typed := make([]D, 0, len(values))
	for _, value := range values {
		typed = append(typed, value.(D))
	}
	return typed, nil
}

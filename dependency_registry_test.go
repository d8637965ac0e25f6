// dependency_registry_test.go: Tests for armed dependencies
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plughost

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionGreeter struct{ session Session }

func (g *sessionGreeter) Greet() string { return "hello " + g.session.ID() }

func sessionGreeterModule(opts ...ExportOption) Module {
	return Module{Name: "session-greeter", Exports: []Export{
		Provide[Greeter](func(imp Importer) (Greeter, error) {
			session, err := Import[Session](imp)
			if err != nil {
				return nil, err
			}
			return &sessionGreeter{session: session}, nil
		}, opts...),
	}}
}

func TestExecuteWhileArmed_Visibility(t *testing.T) {
	reg := NewDependencyRegistry()
	ctx := context.Background()

	err := ExecuteWhileArmed[Session](ctx, reg, testSession("s1"), func(armedCtx context.Context) error {
		s, ok := Armed[Session](armedCtx)
		require.True(t, ok)
		assert.Equal(t, "s1", s.ID())

		_, ok = Armed[Session](ctx)
		assert.False(t, ok, "armed value leaked into the outer context")
		return nil
	})
	require.NoError(t, err)

	_, ok := Armed[Session](ctx)
	assert.False(t, ok)
}

func TestExecuteWhileArmed_ActionErrorIsReturned(t *testing.T) {
	err := ExecuteWhileArmed[Session](context.Background(), NewDependencyRegistry(), testSession("s"), func(context.Context) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestExecuteWhileArmed_Reentry(t *testing.T) {
	reg := NewDependencyRegistry()

	err := ExecuteWhileArmed[Session](context.Background(), reg, testSession("outer"), func(ctx context.Context) error {
		return ExecuteWhileArmed[Session](ctx, reg, testSession("inner"), func(context.Context) error {
			t.Fatal("nested arming of the same type must not run")
			return nil
		})
	})
	requireCode(t, err, ErrCodeArmedReentry)
}

func TestExecuteWhileArmed_NestedTypes(t *testing.T) {
	reg := NewDependencyRegistry()

	err := ExecuteWhileArmed[Session](context.Background(), reg, testSession("s"), func(ctx context.Context) error {
		return ExecuteWhileArmed[Clock](ctx, reg, &fixedClock{at: 7}, func(ctx context.Context) error {
			s, ok := Armed[Session](ctx)
			require.True(t, ok)
			c, ok := Armed[Clock](ctx)
			require.True(t, ok)
			assert.Equal(t, "s", s.ID())
			assert.Equal(t, int64(7), c.Now())
			return nil
		})
	})
	require.NoError(t, err)
}

func TestExecuteWhileArmed_SerializesSameType(t *testing.T) {
	reg := NewDependencyRegistry()
	var (
		active  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ExecuteWhileArmed[Session](context.Background(), reg, testSession("s"), func(context.Context) error {
				if active.Add(1) > 1 {
					overlap.Store(true)
				}
				time.Sleep(time.Millisecond)
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.False(t, overlap.Load())
}

func TestArmedLoad_NoBleedThrough(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.deploy(sessionGreeterModule())
	pc := env.context()

	g1, err := ArmedLoad[Greeter, Session](ctx, pc, testSession("d1"))
	require.NoError(t, err)
	g2, err := ArmedLoad[Greeter, Session](ctx, pc, testSession("d2"))
	require.NoError(t, err)

	assert.Equal(t, "hello d1", g1.Greet())
	assert.Equal(t, "hello d2", g2.Greet())

	// Outside an armed scope the dependency is not resolvable.
	_, err = LoadRequired[Greeter](ctx, pc)
	requireCode(t, err, ErrCodePartCreation)
}

func TestArmedLoad_SharedPartUsingArmedValueIsNotCached(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.deploy(sessionGreeterModule(Shared()))
	pc := env.context()

	g1, err := ArmedLoad[Greeter, Session](ctx, pc, testSession("d1"))
	require.NoError(t, err)
	g2, err := ArmedLoad[Greeter, Session](ctx, pc, testSession("d2"))
	require.NoError(t, err)

	assert.Equal(t, "hello d1", g1.Greet())
	assert.Equal(t, "hello d2", g2.Greet())
	assert.True(t, env.logger.HasMessage("DEBUG", "Shared part depends on an armed value, not cached"))
}

func optionalSessionGreeterModule() Module {
	return Module{Name: "optional-session-greeter", Exports: []Export{
		Provide[Greeter](func(imp Importer) (Greeter, error) {
			session, ok, err := ImportOptional[Session](imp)
			if err != nil {
				return nil, err
			}
			if !ok {
				return newGreeterFactory("hello <none>")(imp)
			}
			return &sessionGreeter{session: session}, nil
		}, Shared()),
	}}
}

type greeterSegment struct{ greeter Greeter }

func (s greeterSegment) SomeMethod() string      { return s.greeter.Greet() }
func (s greeterSegment) SomeOtherMethod() string { return "other" }

func TestArmedLoad_SharedPartCachedWithoutArmingObservesArmedValue(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.deploy(optionalSessionGreeterModule())
	pc := env.context()

	plain, err := LoadRequired[Greeter](ctx, pc)
	require.NoError(t, err)
	assert.Equal(t, "hello <none>", plain.Greet())

	armed, err := ArmedLoad[Greeter, Session](ctx, pc, testSession("d1"))
	require.NoError(t, err)
	assert.Equal(t, "hello d1", armed.Greet())

	again, err := LoadRequired[Greeter](ctx, pc)
	require.NoError(t, err)
	assert.Same(t, plain, again, "cached instance replaced by an armed build")
}

func TestArmedLoad_SharedPartDependingOnArmedLookupTransitively(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.deploy(optionalSessionGreeterModule())
	env.deploy(Module{Name: "greeter-segment", Exports: []Export{
		Provide[Segment](func(imp Importer) (Segment, error) {
			g, err := Import[Greeter](imp)
			if err != nil {
				return nil, err
			}
			return greeterSegment{greeter: g}, nil
		}, Shared()),
	}})
	pc := env.context()

	plain, err := LoadRequired[Segment](ctx, pc)
	require.NoError(t, err)
	assert.Equal(t, "hello <none>", plain.SomeMethod())

	armed, err := ArmedLoad[Segment, Session](ctx, pc, testSession("d2"))
	require.NoError(t, err)
	assert.Equal(t, "hello d2", armed.SomeMethod())
}

func TestArmedLoad_ArmedValueSatisfiesRequiredContract(t *testing.T) {
	env := newTestEnv(t)
	pc := env.context()

	s, err := ArmedLoad[Session, Session](context.Background(), pc, testSession("direct"))
	require.NoError(t, err)
	assert.Equal(t, "direct", s.ID())
}

func TestArmedLoad_Concurrent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.deploy(sessionGreeterModule())
	pc := env.context()

	var wg sync.WaitGroup
	ids := []string{"a", "b", "c", "d", "e", "f"}
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			g, err := ArmedLoad[Greeter, Session](ctx, pc, testSession(id))
			if assert.NoError(t, err) {
				assert.Equal(t, "hello "+id, g.Greet())
			}
		}(id)
	}
	wg.Wait()
}

func TestArmedValue_LoadReturnsPartsOnlyImportManyIncludesArmed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.deploy(Module{Name: "plain-greeter", Exports: []Export{
		Provide[Greeter](newGreeterFactory("part")),
	}})
	env.deploy(Module{Name: "greeter-list", Exports: []Export{
		Provide[Segment](func(imp Importer) (Segment, error) {
			greeters, err := ImportMany[Greeter](imp)
			if err != nil {
				return nil, err
			}
			texts := make([]string, 0, len(greeters))
			for _, g := range greeters {
				texts = append(texts, g.Greet())
			}
			return &segment{some: strings.Join(texts, ","), other: "list"}, nil
		}),
	}})
	pc := env.context()

	err := ExecuteWhileArmed[Greeter](ctx, env.dependencies, &greeter{text: "armed"}, func(armedCtx context.Context) error {
		parts, err := Load[Greeter](armedCtx, pc)
		require.NoError(t, err)
		require.Len(t, parts, 1)
		assert.Equal(t, "part", parts[0].Greet())

		seg, err := LoadRequired[Segment](armedCtx, pc)
		require.NoError(t, err)
		assert.Equal(t, "armed,part", seg.SomeMethod())
		return nil
	})
	require.NoError(t, err)
}


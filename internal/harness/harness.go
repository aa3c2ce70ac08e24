package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/lifetimes/internal/classdef"
	"github.com/roach88/lifetimes/internal/refgraph"
)

// Option configures a scenario run.
type Option func(*config)

type config struct {
	logger    *slog.Logger
	observers []refgraph.Observer
}

// WithLogger sets the logger passed to the simulator.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver registers an observer on the simulator.
func WithObserver(o refgraph.Observer) Option {
	return func(c *config) {
		c.observers = append(c.observers, o)
	}
}

type runner struct {
	sim     *refgraph.Simulator
	classes *classdef.Registry
	objects map[string]refgraph.ObjectID
	aliases map[refgraph.ObjectID]string
	classOf map[string]string
	scopes  map[string]*refgraph.Scope
	result  *Result
	logger  *slog.Logger
}

// RunFile loads and runs a scenario file.
func RunFile(path string, opts ...Option) (*Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, err
	}
	return Run(scenario, opts...)
}

// Run executes a scenario against a fresh simulator.
//
// The returned error covers problems with the scenario itself: unknown
// aliases or scopes, class files that fail to compile, fields the class does
// not declare. Steps that misbehave at runtime, and failed assertions, are
// reported in Result.Errors instead.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := &config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(cfg)
	}

	simOpts := []refgraph.Option{
		refgraph.WithClock(refgraph.NewClock()),
		refgraph.WithTokenGenerator(refgraph.NewFixedGenerator(scenario.runToken())),
		refgraph.WithLogger(cfg.logger),
	}
	for _, o := range cfg.observers {
		simOpts = append(simOpts, refgraph.WithObserver(o))
	}

	r := &runner{
		sim:     refgraph.New(simOpts...),
		objects: make(map[string]refgraph.ObjectID),
		aliases: make(map[refgraph.ObjectID]string),
		classOf: make(map[string]string),
		scopes:  make(map[string]*refgraph.Scope),
		result:  NewResult(),
		logger:  cfg.logger,
	}

	if len(scenario.Classes) > 0 {
		reg, errs := classdef.LoadFiles(scenario.Classes...)
		if len(errs) > 0 {
			return nil, fmt.Errorf("load classes: %w", errors.Join(errs...))
		}
		r.classes = reg
	}

	for i, step := range scenario.Steps {
		halted, err := r.execute(i, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] (%s): %w", i, step.Action(), err)
		}
		if halted {
			r.result.Halted = true
			r.logger.Info("scenario halted", "scenario", scenario.Name, "step", i)
			break
		}
	}

	r.finish()

	for _, msg := range EvaluateAssertions(r.result, scenario.Assertions) {
		r.result.AddError(msg)
	}
	return r.result, nil
}

// execute runs one step. halted reports a fatal runtime error.
func (r *runner) execute(i int, step Step) (halted bool, err error) {
	var runErr error
	switch step.Action() {
	case "open":
		err = r.open(step.Open)
	case "close":
		sc, ok := r.scopes[step.Close]
		if !ok {
			return false, fmt.Errorf("unknown scope %q", step.Close)
		}
		runErr = sc.Close()
	case "create":
		runErr, err = r.create(step)
	case "set":
		runErr, err = r.set(step)
	case "clear":
		runErr, err = r.clear(step.Clear)
	case "release":
		runErr, err = r.release(step)
	case "read":
		runErr, err = r.read(i, step)
	case "shutdown":
		r.result.Leaked = r.aliasesOf(r.sim.Shutdown())
	}
	if err != nil {
		return false, err
	}
	r.check(i, step, runErr)
	return runErr != nil && refgraph.IsFatal(runErr), nil
}

// check compares a step's runtime error against its expectation.
func (r *runner) check(i int, step Step, runErr error) {
	want := ""
	if step.Expect != nil {
		want = step.Expect.Error
	}
	got := ""
	if runErr != nil {
		got = string(refgraph.CodeOf(runErr))
		if got == "" {
			got = runErr.Error()
		}
	}
	switch {
	case want == "" && got != "":
		r.result.AddError(fmt.Sprintf("steps[%d] (%s): unexpected error: %v", i, step.Action(), runErr))
	case want != "" && got == "":
		r.result.AddError(fmt.Sprintf("steps[%d] (%s): expected error %s, got none", i, step.Action(), want))
	case want != got:
		r.result.AddError(fmt.Sprintf("steps[%d] (%s): expected error %s, got %s", i, step.Action(), want, got))
	}
}

func (r *runner) open(name string) error {
	if sc, ok := r.scopes[name]; ok && !sc.Closed() {
		return fmt.Errorf("scope %q is already open", name)
	}
	if _, ok := r.objects[name]; ok {
		return fmt.Errorf("scope %q collides with an object alias", name)
	}
	r.scopes[name] = r.sim.OpenScope(name)
	return nil
}

func (r *runner) create(step Step) (runErr, err error) {
	alias := step.Create
	if _, ok := r.objects[alias]; ok {
		return nil, fmt.Errorf("alias %q already defined", alias)
	}
	if _, ok := r.scopes[alias]; ok {
		return nil, fmt.Errorf("alias %q collides with a scope", alias)
	}
	if step.Class != "" && r.classes != nil {
		if _, ok := r.classes.Class(step.Class); !ok {
			return nil, fmt.Errorf("unknown class %q", step.Class)
		}
	}

	label := step.Class
	if label == "" {
		label = alias
	}

	var id refgraph.ObjectID
	if step.In == "" {
		id = r.sim.CreateObject(label)
	} else {
		sc, ok := r.scopes[step.In]
		if !ok {
			return nil, fmt.Errorf("unknown scope %q", step.In)
		}
		if id, runErr = sc.CreateObject(label); runErr != nil {
			return runErr, nil
		}
	}
	r.objects[alias] = id
	r.aliases[id] = alias
	if step.Class != "" {
		r.classOf[alias] = step.Class
	}
	return nil, nil
}

func (r *runner) target(alias string) (refgraph.ObjectID, error) {
	id, ok := r.objects[alias]
	if !ok {
		return 0, fmt.Errorf("unknown object %q", alias)
	}
	return id, nil
}

// fieldKind resolves the reference kind of a set step, checking it against
// the holder's class when one is known.
func (r *runner) fieldKind(holder, field, to string, explicit string) (refgraph.RefKind, error) {
	var kind refgraph.RefKind
	if explicit != "" {
		k, err := refgraph.ParseRefKind(explicit)
		if err != nil {
			return 0, err
		}
		kind = k
	}

	className, classed := r.classOf[holder]
	if !classed || r.classes == nil {
		if kind == 0 {
			if _, isScope := r.scopes[holder]; isScope {
				return refgraph.Strong, nil
			}
			return 0, fmt.Errorf("kind is required for %s.%s", holder, field)
		}
		return kind, nil
	}

	class, _ := r.classes.Class(className)
	decl, ok := class.Field(field)
	if !ok {
		return 0, fmt.Errorf("class %s has no field %q", className, field)
	}
	if kind != 0 && kind != decl.Kind {
		return 0, fmt.Errorf("%s.%s is declared %s, not %s", className, field, decl.Kind, kind)
	}
	if targetClass, ok := r.classOf[to]; ok && targetClass != decl.Type {
		return 0, fmt.Errorf("%s.%s holds %s, not %s", className, field, decl.Type, targetClass)
	}
	return decl.Kind, nil
}

func (r *runner) set(step Step) (runErr, err error) {
	holder, field, _ := splitFieldPath(step.Set)
	sc, isScope := r.scopes[holder]
	var from refgraph.ObjectID
	if !isScope {
		if from, err = r.target(holder); err != nil {
			return nil, err
		}
	}
	to, err := r.target(step.To)
	if err != nil {
		return nil, err
	}
	kind, err := r.fieldKind(holder, field, step.To, step.Kind)
	if err != nil {
		return nil, err
	}

	if isScope {
		_, runErr = sc.SetField(field, to, kind)
		return runErr, nil
	}
	_, runErr = r.sim.SetField(from, field, to, kind)
	return runErr, nil
}

func (r *runner) clear(path string) (runErr, err error) {
	holder, field, _ := splitFieldPath(path)
	if sc, ok := r.scopes[holder]; ok {
		return sc.ClearField(field), nil
	}
	from, err := r.target(holder)
	if err != nil {
		return nil, err
	}
	return r.sim.ClearField(from, field), nil
}

func (r *runner) release(step Step) (runErr, err error) {
	to, err := r.target(step.Release)
	if err != nil {
		return nil, err
	}
	if step.In == "" {
		return r.sim.ReleaseStrong(refgraph.Root, to), nil
	}
	sc, ok := r.scopes[step.In]
	if !ok {
		return nil, fmt.Errorf("unknown scope %q", step.In)
	}
	return sc.ReleaseStrong(to), nil
}

func (r *runner) read(i int, step Step) (runErr, err error) {
	holder, field, _ := splitFieldPath(step.Read)

	var (
		ref   refgraph.RefID
		bound bool
	)
	if sc, ok := r.scopes[holder]; ok {
		ref, bound = sc.Field(field)
	} else {
		from, err := r.target(holder)
		if err != nil {
			return nil, err
		}
		ref, bound = r.sim.Field(from, field)
	}
	if !bound {
		r.result.AddError(fmt.Sprintf("steps[%d] (read): %s is not set", i, step.Read))
		return nil, nil
	}

	kind, _ := r.sim.Kind(ref)
	var (
		target refgraph.ObjectID
		ok     = true
	)
	switch kind {
	case refgraph.Weak:
		target, ok, runErr = r.sim.ReadWeak(ref)
	case refgraph.Unowned:
		target, runErr = r.sim.ReadUnowned(ref)
	default:
		target, runErr = r.sim.ReadStrong(ref)
	}
	if runErr != nil || step.Expect == nil {
		return runErr, nil
	}

	switch {
	case step.Expect.Empty && ok:
		r.result.AddError(fmt.Sprintf("steps[%d] (read): %s expected empty, got %s", i, step.Read, r.aliases[target]))
	case step.Expect.Target != "" && !ok:
		r.result.AddError(fmt.Sprintf("steps[%d] (read): %s expected %s, got empty", i, step.Read, step.Expect.Target))
	case step.Expect.Target != "" && r.aliases[target] != step.Expect.Target:
		r.result.AddError(fmt.Sprintf("steps[%d] (read): %s expected %s, got %s", i, step.Read, step.Expect.Target, r.aliases[target]))
	}
	return nil, nil
}

// finish fills the result from the simulator's final state.
func (r *runner) finish() {
	res := r.result
	res.RunToken = r.sim.RunToken()
	res.Events = r.sim.Events()

	res.Live = r.aliasesOf(r.sim.Live())
	res.Destroyed = r.aliasesOf(r.sim.Destroyed())
	for alias, id := range r.objects {
		if n, err := r.sim.StrongCount(id); err == nil {
			res.StrongCounts[alias] = n
		}
	}
	for _, e := range res.Events {
		res.Trace = append(res.Trace, r.traceEvent(e))
	}

	digest, err := r.sim.Digest()
	if err != nil {
		res.AddError(fmt.Sprintf("digest: %v", err))
		return
	}
	res.Digest = digest
}

func (r *runner) traceEvent(e refgraph.Event) TraceEvent {
	te := TraceEvent{
		Seq:    e.Seq,
		Type:   string(e.Type),
		Object: r.aliases[e.Object],
		Label:  e.Label,
		Ref:    int64(e.Ref),
		Holder: r.aliases[e.Holder],
		Scope:  e.Scope,
		Field:  e.Field,
	}
	if e.Kind != 0 {
		te.Kind = e.Kind.String()
	}
	return te
}

// aliasesOf maps IDs to aliases, keeping order.
func (r *runner) aliasesOf(ids []refgraph.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.aliases[id])
	}
	return out
}

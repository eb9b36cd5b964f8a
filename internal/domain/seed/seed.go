// Package seed loads a YAML description of modules and their status
// picklists into the store. Applying the same file twice leaves the store
// unchanged.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/matiasleandrokruk/procstatus/internal/domain/recordstatus"
)

// File is the root of a seed document.
type File struct {
	Modules []Module `yaml:"modules"`
}

// Module describes one CRM module.
type Module struct {
	ID          int64   `yaml:"id"`
	Name        string  `yaml:"name"`
	BaseTable   string  `yaml:"base_table"`
	StatusField string  `yaml:"status_field"`
	Fields      []Field `yaml:"fields"`
}

// Field is a picklist field of a module.
type Field struct {
	Name     string  `yaml:"name"`
	Label    string  `yaml:"label"`
	Presence *int    `yaml:"presence"`
	Values   []Value `yaml:"values"`
}

// Value is one picklist value. State and TimeCounting only apply to the
// module's status field.
type Value struct {
	Value        string `yaml:"value"`
	State        *int   `yaml:"state"`
	TimeCounting []int  `yaml:"time_counting"`
	Lock         bool   `yaml:"lock"`
}

// Result counts what Apply wrote.
type Result struct {
	Modules   int
	Fields    int
	Values    int
	Activated []string
}

// ErrInvalid marks a seed document that fails validation.
var ErrInvalid = errors.New("invalid seed file")

// Load reads and validates a seed file.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a seed document.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parsing seed: %w", err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks ids, names and value configuration.
func (f File) Validate() error {
	seen := make(map[string]bool, len(f.Modules))
	for _, m := range f.Modules {
		if m.ID <= 0 || m.Name == "" {
			return fmt.Errorf("%w: module needs a positive id and a name", ErrInvalid)
		}
		if seen[m.Name] {
			return fmt.Errorf("%w: duplicate module %s", ErrInvalid, m.Name)
		}
		seen[m.Name] = true

		statusFound := m.StatusField == ""
		for _, fd := range m.Fields {
			if fd.Name == "" {
				return fmt.Errorf("%w: %s has a field without name", ErrInvalid, m.Name)
			}
			if fd.Presence != nil && (*fd.Presence < 0 || *fd.Presence > 2) {
				return fmt.Errorf("%w: %s.%s presence %d", ErrInvalid, m.Name, fd.Name, *fd.Presence)
			}
			isStatus := fd.Name == m.StatusField
			statusFound = statusFound || isStatus
			for _, v := range fd.Values {
				if err := v.validate(isStatus); err != nil {
					return fmt.Errorf("%w: %s.%s %q: %v", ErrInvalid, m.Name, fd.Name, v.Value, err)
				}
			}
		}
		if !statusFound {
			return fmt.Errorf("%w: %s status field %s is not declared", ErrInvalid, m.Name, m.StatusField)
		}
	}
	return nil
}

func (v Value) validate(isStatus bool) error {
	if v.Value == "" {
		return errors.New("empty value")
	}
	if !isStatus && (v.State != nil || len(v.TimeCounting) > 0 || v.Lock) {
		return errors.New("state, time counting and lock need the status field")
	}
	if v.State != nil && !recordstatus.RecordState(*v.State).Valid() {
		return fmt.Errorf("state %d", *v.State)
	}
	_, err := recordstatus.FormatTimeCounting(v.timeCounting())
	return err
}

func (v Value) timeCounting() []recordstatus.TimeCounting {
	out := make([]recordstatus.TimeCounting, 0, len(v.TimeCounting))
	for _, c := range v.TimeCounting {
		out = append(out, recordstatus.TimeCounting(c))
	}
	return out
}

// Apply writes f through svc: modules, fields and values are upserted, the
// status field is activated, value configuration and lock statuses are set.
// Every cached entry of svc is dropped afterwards.
func Apply(ctx context.Context, svc *recordstatus.Service, f File, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := svc.Store()
	var res Result

	for _, m := range f.Modules {
		if err := store.UpsertModule(ctx, recordstatus.Module{ID: m.ID, Name: m.Name, BaseTable: m.BaseTable}); err != nil {
			return res, err
		}
		res.Modules++

		statusValues := make(map[string]int64)
		for _, fd := range m.Fields {
			presence := 2
			if fd.Presence != nil {
				presence = *fd.Presence
			}
			label := fd.Label
			if label == "" {
				label = fd.Name
			}
			fieldID, err := store.UpsertField(ctx, m.ID, fd.Name, label, presence)
			if err != nil {
				return res, err
			}
			res.Fields++
			for i, v := range fd.Values {
				id, err := store.UpsertPicklistValue(ctx, fieldID, v.Value, i+1)
				if err != nil {
					return res, err
				}
				res.Values++
				if fd.Name == m.StatusField {
					statusValues[v.Value] = id
				}
			}
		}
		if m.StatusField == "" {
			continue
		}
		// Module and field rows were written behind the cache.
		if err := svc.InvalidateAll(ctx); err != nil {
			return res, err
		}
		ok, err := svc.Activate(ctx, m.Name, m.StatusField)
		if err != nil {
			return res, err
		}
		if !ok {
			return res, fmt.Errorf("activate %s.%s: field not found", m.Name, m.StatusField)
		}
		res.Activated = append(res.Activated, m.Name)

		if err := applyStatusValues(ctx, svc, m, statusValues); err != nil {
			return res, err
		}
	}
	if err := svc.InvalidateAll(ctx); err != nil {
		return res, err
	}
	logger.Info("seed applied",
		zap.Int("modules", res.Modules),
		zap.Int("fields", res.Fields),
		zap.Int("values", res.Values),
		zap.Strings("activated", res.Activated))
	return res, nil
}

func applyStatusValues(ctx context.Context, svc *recordstatus.Service, m Module, ids map[string]int64) error {
	locks, err := svc.LockStatusesByValue(ctx, m.Name)
	if err != nil {
		return err
	}
	for _, fd := range m.Fields {
		if fd.Name != m.StatusField {
			continue
		}
		for _, v := range fd.Values {
			id := ids[v.Value]
			cfg := recordstatus.ValueConfig{TimeCounting: v.timeCounting()}
			if v.State != nil {
				state := recordstatus.RecordState(*v.State)
				cfg.State = &state
			}
			if _, err := svc.ConfigureValue(ctx, m.Name, id, cfg); err != nil {
				return fmt.Errorf("configure %s %q: %w", m.Name, v.Value, err)
			}
			_, locked := locks[id]
			switch {
			case v.Lock && !locked:
				err = svc.AddLockStatus(ctx, m.Name, id)
			case !v.Lock && locked:
				err = svc.RemoveLockStatus(ctx, m.Name, id)
			}
			if err != nil {
				return fmt.Errorf("lock status %s %q: %w", m.Name, v.Value, err)
			}
		}
	}
	return nil
}

package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/odogen/internal/cipher"
)

func specMap(t *testing.T, mutate func(map[string]interface{})) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(cipher.Derive(17))
	if err != nil {
		t.Fatalf("marshal spec: %v", err)
	}
	// UseNumber keeps 64-bit masks exact through the round trip.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		t.Fatalf("unmarshal spec: %v", err)
	}
	if mutate != nil {
		mutate(m)
	}
	return m
}

// TestSpecContract checks that malformed spec files are caught at the
// boundary, before they reach structural validation.
func TestSpecContract(t *testing.T) {
	v, err := NewSpecValidator()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(map[string]interface{})
		wantErr bool
	}{
		{name: "derived_spec", wantErr: false},
		{
			name:    "digest_mismatch",
			mutate:  func(m map[string]interface{}) { m["digest_bits"] = 600 },
			wantErr: true,
		},
		{
			name:    "word_too_wide",
			mutate:  func(m map[string]interface{}) { m["word_bits"] = 128; m["digest_bits"] = 1280 },
			wantErr: true,
		},
		{
			name:    "missing_rounds",
			mutate:  func(m map[string]interface{}) { delete(m, "rounds") },
			wantErr: true,
		},
		{
			name:    "unknown_field",
			mutate:  func(m map[string]interface{}) { m["sboxes"] = []interface{}{} },
			wantErr: true,
		},
		{
			name:    "rotation_out_of_range",
			mutate:  func(m map[string]interface{}) { m["rotations"] = []interface{}{3, 64} },
			wantErr: true,
		},
		{
			name:    "no_rotations",
			mutate:  func(m map[string]interface{}) { m["rotations"] = []interface{}{} },
			wantErr: true,
		},
		{
			name: "three_permutations",
			mutate: func(m map[string]interface{}) {
				p := m["permutations"].([]interface{})
				m["permutations"] = append(p, p[0])
			},
			wantErr: true,
		},
		{
			name:    "shuffle_too_large",
			mutate:  func(m map[string]interface{}) { m["shuffle"] = 10 },
			wantErr: true,
		},
		{
			name: "single_entry_table",
			mutate: func(m map[string]interface{}) {
				tables := m["small_sboxes"].([]interface{})
				tables[0] = []interface{}{0}
			},
			wantErr: true,
		},
		{
			name:    "negative_key",
			mutate:  func(m map[string]interface{}) { m["round_keys"] = []interface{}{1, -2} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(specMap(t, tt.mutate))
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrSchema) {
				t.Errorf("expected ErrSchema, got %v", err)
			}
		})
	}
}

func manifestMap() map[string]interface{} {
	return map[string]interface{}{
		"generator": "odogen",
		"seed":      42,
		"prefix":    "odo_",
		"schedule": map[string]interface{}{
			"rounds":      60,
			"throughput":  7,
			"unrolling":   9,
			"extra_delay": 0,
			"periods":     7,
			"period_bits": 3,
			"latency":     121,
		},
		"modules": []interface{}{
			map[string]interface{}{
				"name": "odo_encrypt",
				"ports": []interface{}{
					map[string]interface{}{"name": "clk", "dir": "input", "width": 1},
					map[string]interface{}{"name": "out", "dir": "output", "width": 640, "reg": true},
				},
			},
		},
		"artifact": map[string]interface{}{
			"bytes":  1024,
			"sha256": strings.Repeat("ab", 32),
		},
	}
}

func TestManifestContract(t *testing.T) {
	v, err := NewManifestValidator()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(map[string]interface{})
		wantErr bool
	}{
		{name: "valid_manifest", wantErr: false},
		{
			name: "wrong_latency",
			mutate: func(m map[string]interface{}) {
				m["schedule"].(map[string]interface{})["latency"] = 120
			},
			wantErr: true,
		},
		{
			name: "wrong_unrolling",
			mutate: func(m map[string]interface{}) {
				m["schedule"].(map[string]interface{})["unrolling"] = 8
			},
			wantErr: true,
		},
		{
			name: "throughput_exceeds_rounds",
			mutate: func(m map[string]interface{}) {
				m["schedule"].(map[string]interface{})["throughput"] = 61
			},
			wantErr: true,
		},
		{
			name:    "bad_prefix",
			mutate:  func(m map[string]interface{}) { m["prefix"] = "9-bad" },
			wantErr: true,
		},
		{
			name:    "empty_prefix",
			mutate:  func(m map[string]interface{}) { m["prefix"] = "" },
			wantErr: false,
		},
		{
			name:    "short_digest",
			mutate:  func(m map[string]interface{}) { m["artifact"].(map[string]interface{})["sha256"] = "abc" },
			wantErr: true,
		},
		{
			name:    "no_modules",
			mutate:  func(m map[string]interface{}) { m["modules"] = []interface{}{} },
			wantErr: true,
		},
		{
			name: "bad_direction",
			mutate: func(m map[string]interface{}) {
				mod := m["modules"].([]interface{})[0].(map[string]interface{})
				mod["ports"].([]interface{})[0].(map[string]interface{})["dir"] = "inout"
			},
			wantErr: true,
		},
		{
			name:    "seed_too_large",
			mutate:  func(m map[string]interface{}) { m["seed"] = int64(1) << 32 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := manifestMap()
			if tt.mutate != nil {
				tt.mutate(m)
			}
			err := v.Validate(m)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateJSONReportsEachViolation(t *testing.T) {
	v, err := NewManifestValidator()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	m := manifestMap()
	m["prefix"] = "-"
	m["generator"] = "other"
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	err = v.ValidateJSON(data)
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("ValidateJSON error = %v, want ErrSchema", err)
	}
	for _, field := range []string{"prefix", "generator"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("expected %s violation in %q", field, err)
		}
	}
}

func TestValidateJSONRejectsGarbage(t *testing.T) {
	v, err := NewSpecValidator()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}
	if err := v.ValidateJSON([]byte("{not json")); err == nil {
		t.Fatalf("expected compile error")
	}
}

// Package ingest turns raw submissions into validated requests and the
// queue entries that schedule their chunks.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/multierr"

	"github.com/athulya-anil/axon-ingest/pkg/models"
)

// Validate checks a candidate submission and returns its parsed priority.
// Every identifier is checked; the returned error wraps models.ErrInvalidInput
// and lists each violation.
func Validate(ids []int64, priority string) (models.Priority, error) {
	var errs error

	if len(ids) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("ids must be a non-empty array"))
	}
	for i, id := range ids {
		if id < 1 || id > models.MaxID {
			errs = multierr.Append(errs, fmt.Errorf("ids[%d]: %d is not between 1 and %d", i, id, models.MaxID))
		}
	}

	p, ok := models.ParsePriority(priority)
	if !ok {
		errs = multierr.Append(errs, fmt.Errorf("priority %q must be HIGH, MEDIUM, or LOW", priority))
	}

	if errs != nil {
		return "", invalid(errs)
	}
	return p, nil
}

// ParseIdentifiers converts raw JSON values into identifiers. Values that are
// not JSON numbers with an integral value in [1, MaxID] are rejected; all
// offending positions are reported together.
func ParseIdentifiers(raw []json.RawMessage) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	var errs error

	for i, r := range raw {
		id, err := parseIdentifier(r)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("ids[%d]: %w", i, err))
			continue
		}
		ids = append(ids, id)
	}

	if errs != nil {
		return nil, invalid(errs)
	}
	return ids, nil
}

func parseIdentifier(r json.RawMessage) (int64, error) {
	s := string(bytes.TrimSpace(r))
	if s == "" || s[0] == '"' || s == "null" || s == "true" || s == "false" || s[0] == '[' || s[0] == '{' {
		return 0, fmt.Errorf("%s is not an integer", s)
	}

	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if id < 1 || id > models.MaxID {
			return 0, fmt.Errorf("%d is not between 1 and %d", id, models.MaxID)
		}
		return id, nil
	}

	// Accept integral values written with a fraction or exponent, such as 3.0 or 1e3.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s is not an integer", s)
	}
	if f < 1 || f > float64(models.MaxID) {
		return 0, fmt.Errorf("%s is not between 1 and %d", s, models.MaxID)
	}
	return int64(f), nil
}

func invalid(errs error) error {
	return fmt.Errorf("%w: %w", models.ErrInvalidInput, errs)
}

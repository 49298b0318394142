package resource

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Int is an optional integer form field. It decodes from a JSON
// number, a numeric string, or a blank string or null, which leave it
// unset. Form inputs post numbers either way.
type Int struct {
	Int64 int64
	Valid bool
}

// NewInt returns a set Int.
func NewInt(v int64) Int {
	return Int{Int64: v, Valid: true}
}

// Value is the emitted form: nil when unset.
func (i Int) Value() interface{} {
	if !i.Valid {
		return nil
	}
	return i.Int64
}

func (i Int) MarshalJSON() ([]byte, error) {
	if !i.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(i.Int64, 10)), nil
}

func (i *Int) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*i = Int{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			*i = Int{}
			return nil
		}
	}
	n, err := parseInt(s)
	if err != nil {
		return err
	}
	*i = NewInt(n)
	return nil
}

func parseInt(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int64(f), nil
}

package config

import (
	"fmt"
	"time"
)

// Duration is a time.Duration written as text ("3s", "250ms") in JSON, YAML and env.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q, err: %w", string(text), err)
	}
	*d = Duration(v)
	return nil
}

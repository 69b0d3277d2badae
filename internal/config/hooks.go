package config

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// secondsHookFunc accepts a bare number of seconds for durations, the form
// CHECK_INTERVAL has always used, as in CHECK_INTERVAL=3600.
func secondsHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			trimmed := strings.TrimSpace(v)
			if secs, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
				return time.Duration(secs) * time.Second, nil
			}
			return data, nil
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		}
		return data, nil
	}
}

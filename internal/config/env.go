package config

import (
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getFloatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

// describe renders a validation failure using the environment variable that
// feeds the field.
func describe(section any, fe validator.FieldError) string {
	name := fe.Field()
	if f, ok := reflect.TypeOf(section).FieldByName(fe.StructField()); ok {
		if env := f.Tag.Get("env"); env != "" {
			name = env
		}
	}
	if fe.Tag() == "required" || fe.Tag() == "required_if" {
		return name + " is required"
	}
	return name + " is invalid (" + fe.Tag() + ")"
}

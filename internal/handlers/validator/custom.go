package validator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// project keys are used as object prefixes and directory names
var projectKeyRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

func projectKeyValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	if strings.Contains(val, "..") {
		return false
	}

	return projectKeyRegex.MatchString(val)
}

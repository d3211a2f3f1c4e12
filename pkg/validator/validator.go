// Package validator registers domain validations on gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/aymanebs/emr-api/internal/model"
)

// Register installs the custom tags used by request structs:
//
//	role — one of patient, clinician, lab, imaging
//	kind — one of report, image
func Register() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return model.Role(fl.Field().String()).Valid()
	})
	v.RegisterValidation("kind", func(fl validator.FieldLevel) bool {
		return model.DeliverableKind(fl.Field().String()).Valid()
	})
}

package validation

import (
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators attaches domain tags to gin's binding engine so
// request structs can use them directly in binding tags.
func RegisterCustomValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	_ = v.RegisterValidation("latitude", validateLatitude)
	_ = v.RegisterValidation("longitude", validateLongitude)
	_ = v.RegisterValidation("vehicle_class", validateVehicleClass)
	_ = v.RegisterValidation("payment_method", validatePaymentMethod)
}

// validateLatitude checks if latitude is within valid range (-90 to 90)
func validateLatitude(fl validator.FieldLevel) bool {
	latitude := fl.Field().Float()
	return latitude >= -90.0 && latitude <= 90.0
}

// validateLongitude checks if longitude is within valid range (-180 to 180)
func validateLongitude(fl validator.FieldLevel) bool {
	longitude := fl.Field().Float()
	return longitude >= -180.0 && longitude <= 180.0
}

// validateVehicleClass checks if vehicle class is valid
func validateVehicleClass(fl validator.FieldLevel) bool {
	class := fl.Field().String()
	return contains([]string{"car", "moto"}, class)
}

// validatePaymentMethod checks if payment method is valid
func validatePaymentMethod(fl validator.FieldLevel) bool {
	method := fl.Field().String()
	return contains([]string{"cash", "wallet"}, method)
}

func contains(slice []string, item string) bool {
	item = strings.ToLower(strings.TrimSpace(item))
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterTagNameFunc(jsonFieldName)
	v.RegisterStructValidation(deliveryStructValidation, SetDeliveryRequest{})
	return v
}

// pickup orders must name the store they are collected from
func deliveryStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(SetDeliveryRequest)
	if req.DeliveryMethod == "PICKUP" && req.PickupStoreID == "" {
		sl.ReportError(req.PickupStoreID, "pickup_store_id", "PickupStoreID", "required_for_pickup", "")
	}
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

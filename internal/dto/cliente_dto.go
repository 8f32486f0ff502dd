package dto

type CrearClienteRequest struct {
	EmisorID string  `json:"emisor_id" validate:"required,uuid"`
	Nombre   string  `json:"nombre"    validate:"required,max=200"`
	DNI      *string `json:"dni"       validate:"omitempty,len=8,numeric"`
	RUC      *string `json:"ruc"       validate:"omitempty,len=11,numeric"`
	Telefono *string `json:"telefono"  validate:"omitempty,max=20"`
}

type ActualizarClienteRequest struct {
	Nombre   *string `json:"nombre"   validate:"omitempty,max=200"`
	DNI      *string `json:"dni"      validate:"omitempty,len=8,numeric"`
	RUC      *string `json:"ruc"      validate:"omitempty,len=11,numeric"`
	Telefono *string `json:"telefono" validate:"omitempty,max=20"`
}

type ClienteResponse struct {
	ID       string  `json:"id"`
	EmisorID string  `json:"emisor_id"`
	Nombre   string  `json:"nombre"`
	DNI      *string `json:"dni"`
	RUC      *string `json:"ruc"`
	Telefono *string `json:"telefono"`
}

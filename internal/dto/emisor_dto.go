package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearEmisorRequest struct {
	Nombre       string `json:"nombre"        validate:"required,min=2,max=200"`
	RUC          string `json:"ruc"           validate:"required,len=11,numeric"`
	SunatUsuario string `json:"sunat_usuario" validate:"required,max=60"`
	SunatClave   string `json:"sunat_clave"   validate:"required,max=120"`
}

type ActualizarEmisorRequest struct {
	Nombre       *string `json:"nombre"        validate:"omitempty,min=2,max=200"`
	SunatUsuario *string `json:"sunat_usuario" validate:"omitempty,max=60"`
	SunatClave   *string `json:"sunat_clave"   validate:"omitempty,max=120"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// EmisorResponse never includes the SUNAT password, only whether one is stored.
type EmisorResponse struct {
	ID           string `json:"id"`
	Nombre       string `json:"nombre"`
	RUC          string `json:"ruc"`
	SunatUsuario string `json:"sunat_usuario"`
	TieneClave   bool   `json:"tiene_clave"`
	CreatedAt    string `json:"created_at"`
}

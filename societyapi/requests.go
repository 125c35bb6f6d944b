package societyapi

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UpdateBankDocumentStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

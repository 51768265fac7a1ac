package models

// Image is an uploaded picture submitted for diagnosis.
type Image struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Diagnosis is the normalized result of an image analysis.
type Diagnosis struct {
	Disease        string  `json:"disease"`
	Confidence     float64 `json:"confidence"`
	Recommendation string  `json:"recommendation"`
	Raw            string  `json:"full_diagnosis,omitempty"`
}

// ChatExchange is one text query and the generated reply.
type ChatExchange struct {
	User    string `json:"user"`
	Message string `json:"user_message"`
	Reply   string `json:"response"`
}

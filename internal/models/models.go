package models

// ProbeStatus classifies the outcome of a single candidate probe.
type ProbeStatus int

const (
	StatusFound ProbeStatus = iota
	StatusNotFound
	StatusDenied
	StatusRateLimited
	StatusError
)

func (s ProbeStatus) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusDenied:
		return "denied"
	case StatusRateLimited:
		return "rate_limited"
	default:
		return "error"
	}
}

// CertUpdate represents a certificate_update message from the certstream feed
type CertUpdate struct {
	MessageType string `json:"message_type"`
	Data        struct {
		LeafCert struct {
			AllDomains []string `json:"all_domains"`
		} `json:"leaf_cert"`
		Chain []struct {
			Subject struct {
				Aggregated string `json:"aggregated"`
			} `json:"subject"`
		} `json:"chain"`
	} `json:"data"`
}

// Issuer returns the aggregated subject of the first chain certificate,
// or "" when the message carries no chain.
func (c *CertUpdate) Issuer() string {
	if len(c.Data.Chain) == 0 {
		return ""
	}
	return c.Data.Chain[0].Subject.Aggregated
}

// Candidate is a derived bucket name queued for probing
type Candidate struct {
	Name   string
	Origin string // domain the name was derived from
}

// ProbeResult is the classified outcome of probing one candidate
type ProbeResult struct {
	Candidate Candidate
	Status    ProbeStatus
	Content   []byte // only set for accessible Found results
	Err       error
}

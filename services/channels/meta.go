package channels

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"socialplane/pkg/config"
)

// graphError is the error envelope every Graph API endpoint returns.
type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Subcode int    `json:"error_subcode"`
}

func (e *graphError) String() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s (code %d, subcode %d)", e.Message, e.Code, e.Subcode)
}

func (e *graphError) kind() ErrorKind {
	if e == nil {
		return KindUnknown
	}
	return ClassifyMeta(e.Code, e.Message)
}

// newGraphClient builds the resty client all Meta providers share.
func newGraphClient(cfg *config.Config) *resty.Client {
	return resty.New().
		SetBaseURL(cfg.Meta.GraphURL).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")
}

// failFromTransport converts a transport-level error (DNS, timeout, 5xx
// with no JSON body) into a transient failure result.
func failFromTransport(op string, err error) Result {
	return Fail(KindTransient, fmt.Sprintf("%s: %v", op, err))
}

package middleware

import (
	"strconv"
	"strings"

	"linkdrop-controlplane/pkg/errutil"
	"linkdrop-controlplane/pkg/host"

	"github.com/gin-gonic/gin"
)

// Headers set by the trusted host front door.
const (
	HeaderSignerAccountID    = "X-Signer-Account-Id"
	HeaderSignerPublicKey    = "X-Signer-Public-Key"
	HeaderPredecessorAccount = "X-Predecessor-Account-Id"
	HeaderAttachedDeposit    = "X-Attached-Deposit"
)

// CallContext builds a host.Call for contractID from the request headers and
// stores it in the request context. A missing predecessor defaults to the
// signer, as for a transaction signed directly by the caller.
func CallContext(contractID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		call := host.Call{
			CurrentAccountID: contractID,
			SignerID:         strings.TrimSpace(c.GetHeader(HeaderSignerAccountID)),
			SignerPublicKey:  strings.TrimSpace(c.GetHeader(HeaderSignerPublicKey)),
			PredecessorID:    strings.TrimSpace(c.GetHeader(HeaderPredecessorAccount)),
		}
		if call.PredecessorID == "" {
			call.PredecessorID = call.SignerID
		}

		if raw := strings.TrimSpace(c.GetHeader(HeaderAttachedDeposit)); raw != "" {
			deposit, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || deposit < 0 {
				_ = c.Error(errutil.BadRequest("invalid "+HeaderAttachedDeposit, err))
				c.Abort()
				return
			}
			call.AttachedDeposit = deposit
		}

		c.Request = c.Request.WithContext(host.WithCall(c.Request.Context(), call))
		c.Next()
	}
}

// Package export renders reservations as PDF summaries and Excel
// reports.
package export

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/fablab-reservation/internal/model"
)

// ReceiptPayload returns the string encoded in a reservation's QR code:
// family|id|totalCents|issuedUnix|signature.  The signature is an
// HMAC-SHA256 over the first four fields.
func ReceiptPayload(key string, family model.Family, id uint64, totalCents int64, issuedAt time.Time) string {
	data := fmt.Sprintf("%s|%d|%d|%d", family, id, totalCents, issuedAt.Unix())
	return data + "|" + sign(key, data)
}

// VerifyReceipt checks the signature of a payload produced by
// ReceiptPayload and returns the reservation id it names.
func VerifyReceipt(key, payload string) (uint64, bool) {
	i := strings.LastIndex(payload, "|")
	if i < 0 {
		return 0, false
	}
	data, sig := payload[:i], payload[i+1:]
	if !hmac.Equal([]byte(sign(key, data)), []byte(sig)) {
		return 0, false
	}
	parts := strings.Split(data, "|")
	if len(parts) != 4 {
		return 0, false
	}
	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func sign(key, data string) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// ScheduleLines renders slots as "Day N: date start-end" in loc.
// Unscheduled days render as "Day N: to be scheduled".
func ScheduleLines(slots []model.TimeSlot, loc *time.Location) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		if !s.Scheduled() {
			out = append(out, fmt.Sprintf("Day %d: to be scheduled", s.Day))
			continue
		}
		st, et := s.Start.In(loc), s.End.In(loc)
		out = append(out, fmt.Sprintf("Day %d: %s %s-%s", s.Day,
			st.Format(model.DateLayout), st.Format("3:04 PM"), et.Format("3:04 PM")))
	}
	return out
}

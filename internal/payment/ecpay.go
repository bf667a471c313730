package payment

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ECPayClient builds the auto-posting checkout form for the regional
// card/ATM/convenience-store rail. The rail settles in TWD only; the
// browser posts the signed form directly to the gateway, so order creation
// needs no server-to-server call.
type ECPayClient struct {
	MerchantID string
	HashKey    string
	HashIV     string
	GatewayURL string
	ReturnURL  string
}

func (c *ECPayClient) BuildCheckout(order *PaymentOrder) Continuation {
	fields := map[string]string{
		"MerchantID":        c.MerchantID,
		"MerchantTradeNo":   order.ExternalOrderID,
		"MerchantTradeDate": time.Now().Format("2006/01/02 15:04:05"),
		"PaymentType":       "aio",
		"TotalAmount":       order.AmountNative.Round(0).String(),
		"TradeDesc":         "Wallet deposit",
		"ItemName":          "Wallet deposit " + order.AmountNative.Round(0).String() + " TWD",
		"ReturnURL":         c.ReturnURL,
		"ChoosePayment":     "ALL",
		"EncryptType":       "1",
	}
	fields["CheckMacValue"] = c.checkMacValue(fields)

	return Continuation{
		Provider:        ProviderECPay,
		ExternalOrderID: order.ExternalOrderID,
		FormAction:      c.GatewayURL,
		FormFields:      fields,
	}
}

// checkMacValue signs the form the way the gateway verifies it: key-sorted
// query string wrapped in HashKey/HashIV, URL-encoded, lowered, SHA256.
func (c *ECPayClient) checkMacValue(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("HashKey=" + c.HashKey)
	for _, k := range keys {
		sb.WriteString("&" + k + "=" + fields[k])
	}
	sb.WriteString("&HashIV=" + c.HashIV)

	encoded := strings.ToLower(url.QueryEscape(sb.String()))
	// The gateway uses .NET-style encoding for these characters.
	replacer := strings.NewReplacer(
		"%2d", "-", "%5f", "_", "%2e", ".", "%21", "!", "%2a", "*", "%28", "(", "%29", ")", "%20", "+",
	)
	encoded = replacer.Replace(encoded)

	sum := sha256.Sum256([]byte(encoded))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// VerifyNotification recomputes the signature over every posted field and
// compares it against the CheckMacValue the caller supplied. Only the
// gateway holds the hash key, so a notification that fails this check is
// forged and must not touch any order.
func (c *ECPayClient) VerifyNotification(form url.Values) bool {
	got := form.Get("CheckMacValue")
	if got == "" {
		return false
	}

	fields := make(map[string]string, len(form))
	for k := range form {
		if k == "CheckMacValue" {
			continue
		}
		fields[k] = form.Get(k)
	}
	want := c.checkMacValue(fields)

	return subtle.ConstantTimeCompare([]byte(strings.ToUpper(got)), []byte(want)) == 1
}

// Notification is the server-to-server payment result the gateway posts as
// a form. RtnCode 1 means paid.
type ECPayNotification struct {
	MerchantTradeNo string
	RtnCode         string
	RtnMsg          string
	TradeNo         string
	TradeAmt        string
}

func ParseECPayNotification(form url.Values) ECPayNotification {
	return ECPayNotification{
		MerchantTradeNo: form.Get("MerchantTradeNo"),
		RtnCode:         form.Get("RtnCode"),
		RtnMsg:          form.Get("RtnMsg"),
		TradeNo:         form.Get("TradeNo"),
		TradeAmt:        form.Get("TradeAmt"),
	}
}

func (n ECPayNotification) Paid() bool {
	return n.RtnCode == "1"
}

// VerifyAmount guards against a tampered notification crediting more than
// the order was created for.
func (n ECPayNotification) VerifyAmount(order *PaymentOrder) bool {
	amt, err := decimal.NewFromString(n.TradeAmt)
	if err != nil {
		return false
	}
	return amt.Equal(order.AmountNative.Round(0))
}

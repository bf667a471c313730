package payment

import (
	"net/url"
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCheckout(t *testing.T) {
	client := testECPayClient()
	order := &PaymentOrder{
		ExternalOrderID: "LP0000000000000001AB",
		AmountNative:    decimal.NewFromInt(1000),
		NativeCurrency:  "TWD",
	}

	cont := client.BuildCheckout(order)

	assert.Equal(t, client.GatewayURL, cont.FormAction)
	assert.Equal(t, order.ExternalOrderID, cont.FormFields["MerchantTradeNo"])
	assert.Equal(t, "1000", cont.FormFields["TotalAmount"])
	assert.Equal(t, "aio", cont.FormFields["PaymentType"])
	assert.Equal(t, "ALL", cont.FormFields["ChoosePayment"])
	assert.Equal(t, "1", cont.FormFields["EncryptType"])
	assert.Equal(t, client.ReturnURL, cont.FormFields["ReturnURL"])

	// SHA256 in uppercase hex, per the gateway's EncryptType 1.
	require.Regexp(t, regexp.MustCompile(`^[0-9A-F]{64}$`), cont.FormFields["CheckMacValue"])
}

func TestCheckMacValue_Deterministic(t *testing.T) {
	client := testECPayClient()
	fields := map[string]string{
		"MerchantID":      "2000132",
		"MerchantTradeNo": "LP0000000000000001AB",
		"TotalAmount":     "1000",
	}

	first := client.checkMacValue(fields)
	second := client.checkMacValue(fields)
	assert.Equal(t, first, second)

	// Any field change must change the signature.
	fields["TotalAmount"] = "1001"
	assert.NotEqual(t, first, client.checkMacValue(fields))
}

func TestParseECPayNotification(t *testing.T) {
	form := url.Values{
		"MerchantTradeNo": {"LP0000000000000001AB"},
		"RtnCode":         {"1"},
		"RtnMsg":          {"交易成功"},
		"TradeNo":         {"2404261234567890"},
		"TradeAmt":        {"1000"},
	}

	n := ParseECPayNotification(form)
	assert.Equal(t, "LP0000000000000001AB", n.MerchantTradeNo)
	assert.True(t, n.Paid())

	form.Set("RtnCode", "10200095")
	assert.False(t, ParseECPayNotification(form).Paid())
}

func TestVerifyAmount(t *testing.T) {
	order := &PaymentOrder{AmountNative: decimal.NewFromInt(1000)}

	assert.True(t, ECPayNotification{TradeAmt: "1000"}.VerifyAmount(order))
	assert.False(t, ECPayNotification{TradeAmt: "999"}.VerifyAmount(order))
	assert.False(t, ECPayNotification{TradeAmt: "not-a-number"}.VerifyAmount(order))
}

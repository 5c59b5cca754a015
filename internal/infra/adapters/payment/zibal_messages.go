package payment

// resultMessages maps Zibal result codes to the user-facing Persian text.
var resultMessages = map[int]string{
	100: "درخواست با موفقیت انجام شد.",
	102: "پرداختی یافت نشد.",
	103: "شناسه پرداخت نامعتبر است.",
	104: "پرداخت نامعتبر است.",
	105: "مبلغ پرداخت نامعتبر است.",
	201: "این پرداخت قبلاً تایید شده است.",
	202: "سفارش پیدا نشد.",
	203: "قبلاً درخواست تایید شده است.",
	205: "پرداخت لغو شده است.",
}

const unknownResultMessage = "خطای ناشناخته رخ داده است."

// ResultMessage returns the human-readable text for a Zibal result code.
// Unknown codes map to a generic message rather than failing.
func ResultMessage(code int) string {
	if msg, ok := resultMessages[code]; ok {
		return msg
	}
	return unknownResultMessage
}

package rate

func issueKey(flow, subject string) string {
	return "ts:i:" + flow + ":" + subject
}

func issueIPKey(flow, ip string) string {
	return "ts:ii:" + flow + ":" + ip
}

func verifyKey(flow, subject string) string {
	return "ts:v:" + flow + ":" + subject
}

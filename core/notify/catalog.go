// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"

	"github.com/goccy/go-json"
)

// DefaultLang is the language used when a recipient's language has no messages
const DefaultLang = "en"

// template names
const (
	TemplateCreation               = "creation"
	TemplateActivation             = "activation"
	TemplateActivationConfirmation = "activationconfirmation"
	TemplatePasswordReset          = "passwordreset"
	TemplateSubscription           = "subscription"
)

// title keys of the message catalog
const (
	TitleActivation             = "email.activation.title"
	TitleActivationConfirmation = "email.activationconfirmation.title"
	TitleReset                  = "email.reset.title"
	TitleSubscription           = "email.subscription.title"
)

//go:embed templates/*.html messages/*.json
var assets embed.FS

// catalog holds the mail templates and the localized messages
type catalog struct {
	templates map[string]*template.Template
	messages  map[string]map[string]string
}

func loadCatalog() (*catalog, error) {
	c := &catalog{
		templates: map[string]*template.Template{},
		messages:  map[string]map[string]string{},
	}

	files, err := fs.ReadDir(assets, "messages")
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		data, err := assets.ReadFile(path.Join("messages", f.Name()))
		if err != nil {
			return nil, err
		}
		var messages map[string]string
		if err := json.Unmarshal(data, &messages); err != nil {
			return nil, fmt.Errorf("cannot parse messages %s: %w", f.Name(), err)
		}
		c.messages[strings.TrimSuffix(f.Name(), ".json")] = messages
	}
	if _, ok := c.messages[DefaultLang]; !ok {
		return nil, fmt.Errorf("no messages for default language %s", DefaultLang)
	}

	funcs := template.FuncMap{"msg": c.message}
	files, err = fs.ReadDir(assets, "templates")
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		name := strings.TrimSuffix(f.Name(), ".html")
		t, err := template.New(f.Name()).Funcs(funcs).ParseFS(assets, path.Join("templates", f.Name()))
		if err != nil {
			return nil, fmt.Errorf("cannot parse template %s: %w", name, err)
		}
		c.templates[name] = t
	}
	return c, nil
}

// message returns the message for key in lang, falling back to the default language
// and finally to the key itself
func (c *catalog) message(lang, key string) string {
	if m, ok := c.messages[lang][key]; ok {
		return m
	}
	if m, ok := c.messages[DefaultLang][key]; ok {
		return m
	}
	return key
}

// lang returns langKey if there are messages for it, otherwise the default language
func (c *catalog) lang(langKey string) string {
	langKey = strings.ToLower(langKey)
	if _, ok := c.messages[langKey]; ok {
		return langKey
	}
	if i := strings.IndexAny(langKey, "-_"); i > 0 {
		if _, ok := c.messages[langKey[:i]]; ok {
			return langKey[:i]
		}
	}
	return DefaultLang
}

// render executes the template with vars and returns subject and body
func (c *catalog) render(name, titleKey, lang string, vars map[string]interface{}) (string, string, error) {
	t, ok := c.templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown template %s", name)
	}
	var body bytes.Buffer
	if err := t.Execute(&body, vars); err != nil {
		return "", "", fmt.Errorf("cannot render template %s: %w", name, err)
	}
	return c.message(lang, titleKey), body.String(), nil
}

package handelsregister

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

var (
	ErrNoForm    = errors.New("form not found")
	ErrNoControl = errors.New("form control not found")
)

// Form is a typed handle on a named <form> in a portal page. Its value
// set is seeded from every control in the markup, so hidden state the
// server expects back (JSF view state and friends) rides along on
// submission without the caller knowing about it.
type Form struct {
	Name   string
	Action string
	Method string

	controls map[string]bool
	values   url.Values
}

func findForm(doc *goquery.Document, name string) (*Form, error) {
	sel := doc.Find(fmt.Sprintf("form[name=%s]", name)).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoForm, name)
	}

	form := &Form{
		Name:     name,
		Action:   sel.AttrOr("action", ""),
		Method:   strings.ToUpper(sel.AttrOr("method", "POST")),
		controls: map[string]bool{},
		values:   url.Values{},
	}

	sel.Find("input").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		if name == "" {
			return
		}
		form.controls[name] = true

		switch strings.ToLower(input.AttrOr("type", "text")) {
		case "checkbox", "radio":
			if _, checked := input.Attr("checked"); checked {
				form.values.Set(name, input.AttrOr("value", "on"))
			}
		case "submit", "button", "image", "reset", "file":
			// a browser only sends the clicked submit, none is clicked here
		default:
			form.values.Set(name, input.AttrOr("value", ""))
		}
	})
	sel.Find("select").Each(func(_ int, dropdown *goquery.Selection) {
		name := dropdown.AttrOr("name", "")
		if name == "" {
			return
		}
		form.controls[name] = true

		option := dropdown.Find("option[selected]").First()
		if option.Length() == 0 {
			option = dropdown.Find("option").First()
		}
		if option.Length() > 0 {
			form.values.Set(name, option.AttrOr("value", strings.TrimSpace(option.Text())))
		}
	})
	sel.Find("textarea").Each(func(_ int, area *goquery.Selection) {
		name := area.AttrOr("name", "")
		if name == "" {
			return
		}
		form.controls[name] = true
		form.values.Set(name, area.Text())
	})

	return form, nil
}

// Has reports whether the form markup declares a control with this name.
func (f *Form) Has(name string) bool {
	return f.controls[name]
}

// Set assigns a value to an existing control. Assigning a control the
// markup does not declare reports ErrNoControl so the caller can decide
// whether that control was optional.
func (f *Form) Set(name, value string) error {
	if !f.Has(name) {
		return fmt.Errorf("%w: %q", ErrNoControl, name)
	}
	f.values.Set(name, value)
	return nil
}

// Inject adds a control the markup does not declare. The portal's
// javascript does the same thing when a navigation link is clicked.
func (f *Form) Inject(name, value string) {
	f.controls[name] = true
	f.values.Set(name, value)
}

// Submit sends the form's current values to its action target,
// resolved against base, and returns the response.
func (f *Form) Submit(ctx context.Context, client *resty.Client, base *url.URL) (*resty.Response, error) {
	action, err := url.Parse(f.Action)
	if err != nil {
		return nil, fmt.Errorf("parse form action %q: %w", f.Action, err)
	}
	target := base.ResolveReference(action).String()

	req := client.R().SetContext(ctx)
	if f.Method == "GET" {
		return req.SetQueryParamsFromValues(f.values).Get(target)
	}
	return req.SetFormDataFromValues(f.values).Post(target)
}

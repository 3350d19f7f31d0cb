package service

import "html/template"

const notificationLayout = `{{define "layout"}}<html>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; margin: 0; padding: 0;">
  <div style="margin: 40px auto; max-width: 640px; background-color: #ffffff; border-radius: 10px; overflow: hidden;">
    <div style="background-color: #6C0018; color: #ffffff; text-align: center; padding: 20px;">
      <h1 style="margin: 0; font-size: 20px;">{{.AppName}}</h1>
    </div>
    <div style="padding: 30px; color: #000000;">
      {{template "content" .}}
    </div>
    <div style="background-color: #6C0018; color: #ffffff; font-size: 12px; padding: 15px; text-align: center;">
      <p>This email was generated by an automated system and is not monitored.</p>
    </div>
  </div>
</body>
</html>{{end}}`

var notificationTemplates = map[string]string{
	NotifyFlaggedItem: `{{define "content"}}
<h2 style="color: #6C0018;">{{.Data.Status}} item scanned</h2>
<p><strong>User:</strong> {{.Data.Actor}}</p>
<p><strong>Item Name:</strong> {{.Data.ItemName}}</p>
<p><strong>Barcode:</strong> {{.Data.Barcode}}</p>
<p><strong>Scanned At:</strong> {{.Data.At}}</p>
<p>This item is marked as "{{.Data.Status}}". Please verify its condition and update the system accordingly.</p>
{{end}}`,
	NotifyMissingParts: `{{define "content"}}
<h2 style="color: #6C0018;">Missing item(s) on tech bag return</h2>
<p><strong>User:</strong> {{.Data.Actor}}</p>
<p><strong>Tech Bag:</strong> {{.Data.ItemName}} ({{.Data.Barcode}})</p>
<p><strong>Time:</strong> {{.Data.At}}</p>
<p><strong>Missing:</strong></p>
<ul>{{range .Data.Parts}}<li>{{.}}</li>{{end}}</ul>
{{end}}`,
	NotifyEMS: `{{define "content"}}
<h2 style="color: #6C0018;">Unreturned inventory item, manual review</h2>
<p><strong>Checked Out By:</strong> {{.Data.Holder}}</p>
<p><strong>Client / Org:</strong> {{.Data.ClientName}}</p>
<p><strong>Event Number:</strong> {{.Data.EventNumber}}</p>
<p><strong>Location:</strong> {{.Data.Room}}</p>
<p><strong>Item Name:</strong> {{.Data.ItemName}}</p>
<p><strong>Barcode:</strong> {{.Data.Barcode}}</p>
{{if .Data.Message}}<p>{{.Data.Message}}</p>{{end}}
<p>This item was not found in the assigned room after the event concluded. It was escalated by <strong>{{.Data.Actor}}</strong>.</p>
{{end}}`,
	NotifyInventoryCheck: `{{define "content"}}
{{if .Data.Missing}}<p><strong>{{.Data.Actor}}</strong> completed an inventory check in {{.Data.Building}} and reported the following results:</p>
{{else}}<p><strong>{{.Data.Actor}}</strong> completed an inventory check in {{.Data.Building}} and confirmed all items as available.</p>{{end}}
{{if .Data.Present}}<h3>Items Marked Available</h3>
<table style="width: 100%; border-collapse: collapse; font-size: 14px;">
  <tr style="background-color: #F59701;"><th>Item Name</th><th>Item Barcode</th></tr>
  {{range .Data.Present}}<tr><td>{{.Name}}</td><td>{{.Barcode}}</td></tr>{{end}}
</table>{{end}}
{{if .Data.Missing}}<h3>Items Not Found</h3>
<table style="width: 100%; border-collapse: collapse; font-size: 14px;">
  <tr style="background-color: #F59701;"><th>Item Name</th><th>Item Barcode</th></tr>
  {{range .Data.Missing}}<tr><td>{{.Name}}</td><td>{{.Barcode}}</td></tr>{{end}}
</table>{{end}}
{{if .Data.Notes}}<p><strong>Notes:</strong> {{.Data.Notes}}</p>{{end}}
{{end}}`,
	NotifyNoShow: `{{define "content"}}
<h2 style="color: #6C0018;">Mall table no-show reported</h2>
<p>A no-show was logged by <strong>{{.Data.Actor}}</strong> for a scheduled mall table reservation.</p>
<p><strong>Event Number:</strong> {{.Data.EventNumber}}</p>
<p><strong>Organization:</strong> {{.Data.Organization}}</p>
<p><strong>Tabling Spot:</strong> {{.Data.TablingSpot}}</p>
<p><strong>Start - End Time:</strong> {{.Data.RangeStart}} - {{.Data.RangeEnd}}</p>
{{end}}`,
	NotifyDigest: `{{define "content"}}
<h2 style="color: #6C0018;">Unreturned items digest</h2>
<p>{{len .Data.Items}} item(s) have been out longer than {{.Data.OverdueAfter}}.</p>
<table style="width: 100%; border-collapse: collapse; font-size: 14px;">
  <tr style="background-color: #F59701;"><th>Item</th><th>Barcode</th><th>Holder</th><th>Checked Out</th></tr>
  {{range .Data.Items}}<tr><td>{{.Name}}</td><td>{{.Barcode}}</td><td>{{.CheckedOutBy}}</td><td>{{if .LastCheckOut}}{{.LastCheckOut.Timestamp.Format "2006-01-02 15:04"}}{{end}}</td></tr>{{end}}
</table>
{{end}}`,
}

func parseNotificationTemplates() map[string]*template.Template {
	parsed := make(map[string]*template.Template, len(notificationTemplates))
	for kind, body := range notificationTemplates {
		tmpl := template.Must(template.New(kind).Parse(notificationLayout))
		parsed[kind] = template.Must(tmpl.Parse(body))
	}
	return parsed
}

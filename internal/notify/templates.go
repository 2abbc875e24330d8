package notify

import "html/template"

// メール本文のテンプレート。インライン CSS はメールクライアント互換のため。

const headerBlock = `<div style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 30px; text-align: center; border-radius: 10px;">
<h1 style="margin: 0;">🎓 Brightspace Agent</h1>
<p style="margin: 10px 0 0 0; font-size: 18px;">Bonjour {{.AccountName}} !</p>
</div>`

const newSection = `<h2 style="color: #333;">🆕 NOUVEAUX TRAVAUX DÉTECTÉS ({{len .New}})</h2>
{{range .New}}<div style="background: white; padding: 15px; border-left: 4px solid {{if .IsUrgent}}#f44336{{else}}#4CAF50{{end}}; margin: 10px 0; border-radius: 5px;">
<h3 style="margin: 0 0 10px 0; color: {{if .IsUrgent}}#f44336{{else}}#333{{end}};">{{.Title}}{{if .IsUrgent}} [URGENT]{{end}}</h3>
<p style="margin: 5px 0; color: #666;"><strong>📚 Cours:</strong> {{.Course}}</p>
<p style="margin: 5px 0; color: #666;"><strong>📅 Échéance:</strong> {{.Due}}</p>
</div>{{end}}`

const urgentSection = `{{range .Urgent}}<div style="background: #fff3cd; padding: 15px; border-left: 4px solid #f44336; margin: 10px 0; border-radius: 5px; border: 2px solid #ffc107;">
<h3 style="margin: 0 0 10px 0; color: #333;">{{.Title}}</h3>
<p style="margin: 5px 0; color: #666;"><strong>📚 Cours:</strong> {{.Course}}</p>
<p style="margin: 5px 0; color: #f44336; font-weight: bold; font-size: 18px;">⏰ Temps restant: {{.HoursLeft}} heure{{if gt .HoursLeft 1}}s{{end}} !</p>
<p style="margin: 5px 0; color: #666;"><strong>📅 Échéance:</strong> {{.Due}}</p>
</div>{{end}}`

const statsBlock = `<div style="background: #f5f5f5; padding: 20px; margin-top: 30px; border-radius: 5px;">
<h3 style="color: #333; margin: 0 0 15px 0;">📊 Résumé complet de ta situation</h3>
<p style="margin: 5px 0; color: #666; font-size: 16px;">Tu as <strong>{{.Stats.Total}} {{if eq .Stats.Total 1}}travail{{else}}travaux{{end}}</strong> à faire :</p>
<ul style="list-style: none; padding: 0; margin: 10px 0;">
<li style="color: #f44336; margin: 5px 0; font-size: 15px;">🔴 Urgents (moins de 24h) : <strong>{{.Stats.Urgent}}</strong></li>
<li style="color: #FF9800; margin: 5px 0; font-size: 15px;">🟡 Bientôt (moins de 3 jours) : <strong>{{.Stats.Soon}}</strong></li>
<li style="color: #4CAF50; margin: 5px 0; font-size: 15px;">🟢 Plus tard : <strong>{{.Stats.Later}}</strong></li>
</ul>
</div>`

const footerBlock = `<div style="text-align: center; padding: 20px; background: #f5f5f5; border-radius: 5px; margin-top: 20px;">
<p style="margin: 0; color: #666;">📊 Synchronisation effectuée le {{.GeneratedAt}}</p>
</div>`

var combinedTmpl = template.Must(template.New("combined").Parse(`<html>
<head><meta charset="UTF-8"></head>
<body style="max-width: 600px; margin: 0 auto; padding: 20px; font-family: Arial, sans-serif; line-height: 1.4;">
` + headerBlock + `
<div style="padding: 20px 0;">
` + newSection + `
<h2 style="color: #f44336; margin-top: 30px;">⚠️ DÉTAILS DES TRAVAUX URGENTS</h2>
` + urgentSection + `
</div>
` + statsBlock + `
` + footerBlock + `
</body>
</html>`))

var newOnlyTmpl = template.Must(template.New("new_only").Parse(`<html>
<head><meta charset="UTF-8"></head>
<body style="max-width: 600px; margin: 0 auto; padding: 20px; font-family: Arial, sans-serif; line-height: 1.4;">
` + headerBlock + `
<div style="padding: 20px 0;">
` + newSection + `
</div>
` + statsBlock + `
` + footerBlock + `
</body>
</html>`))

var urgentOnlyTmpl = template.Must(template.New("urgent_only").Parse(`<html>
<head><meta charset="UTF-8"></head>
<body style="max-width: 600px; margin: 0 auto; padding: 20px; font-family: Arial, sans-serif;">
<div style="background: linear-gradient(135deg, #f093fb 0%, #f5576c 100%); color: white; padding: 30px; text-align: center; border-radius: 10px;">
<h1 style="margin: 0;">⚠️ ALERTE URGENTE</h1>
<p style="margin: 10px 0 0 0; font-size: 18px;">{{.AccountName}}, tu as des travaux urgents !</p>
</div>
<div style="padding: 20px 0;">
<h2 style="color: #333;">🚨 {{len .Urgent}} {{if gt (len .Urgent) 1}}travaux{{else}}travail{{end}} à rendre bientôt</h2>
` + urgentSection + `
<div style="text-align: center; padding: 20px; background: #fff3cd; border-radius: 5px; margin-top: 20px; border: 2px solid #ffc107;">
<p style="margin: 0; color: #856404; font-weight: bold;">⏰ N'oublie pas de soumettre tes travaux à temps !</p>
</div>
</div>
` + statsBlock + `
</body>
</html>`))

var summaryTmpl = template.Must(template.New("summary").Parse(`<html>
<head><meta charset="UTF-8"></head>
<body style="max-width: 600px; margin: 0 auto; padding: 20px; font-family: Arial, sans-serif;">
<div style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 30px; text-align: center; border-radius: 10px;">
<h1 style="margin: 0;">{{if eq .Period "matin"}}☀️{{else}}🌙{{end}} Résumé du {{.Period}}</h1>
<p style="margin: 10px 0 0 0; font-size: 18px;">{{.Greeting}} {{.AccountName}} !</p>
</div>
<div style="padding: 20px 0;">
{{if .Pending}}<p style="color: #666; font-size: 16px;">Aucun nouveau travail depuis hier.<br>Aucun travail urgent pour le moment.</p>
<h2 style="color: #333; margin-top: 30px;">Tu as {{.Stats.Total}} {{if eq .Stats.Total 1}}travail{{else}}travaux{{end}} à faire</h2>
{{range .Pending}}<div style="background: white; padding: 15px; border-left: 4px solid #667eea; margin: 10px 0; border-radius: 5px;">
<h3 style="margin: 0 0 10px 0; color: #333;">{{.Title}}</h3>
<p style="margin: 5px 0; color: #666;"><strong>📚 Cours:</strong> {{.Course}}</p>
<p style="margin: 5px 0; color: #666;"><strong>📅 Échéance:</strong> {{.Due}}</p>
</div>{{end}}
` + statsBlock + `
{{else}}<div style="text-align: center; padding: 40px; background: #e8f5e9; border-radius: 10px;">
<h2 style="color: #2e7d32; margin: 0;">🎉 Aucun travail en attente !</h2>
<p style="color: #666; margin: 10px 0 0 0;">{{if eq .Period "matin"}}Profite de ta journée !{{else}}Repose-toi bien 😴{{end}}</p>
</div>{{end}}
</div>
` + footerBlock + `
</body>
</html>`))

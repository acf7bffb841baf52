package report

import "html/template"

// The report is fully self-contained: inline CSS, no script tags, no
// external fetches. Charts are rendered as horizontal CSS bars with the
// data inlined, so the file renders the same offline.
var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>University Finance Dashboard Report</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 0; background: #f4f5f7; color: #1f2933; }
.wrap { max-width: 960px; margin: 0 auto; padding: 24px; }
header { background: #1f3a5f; color: #fff; padding: 24px; border-radius: 8px; }
header h1 { margin: 0 0 8px; font-size: 1.6em; }
header p { margin: 2px 0; color: #cbd5e1; }
section { background: #fff; border-radius: 8px; padding: 20px; margin-top: 20px; box-shadow: 0 1px 2px rgba(0,0,0,.08); }
h2 { margin-top: 0; font-size: 1.2em; border-bottom: 1px solid #e2e8f0; padding-bottom: 8px; }
.metrics { display: flex; flex-wrap: wrap; gap: 16px; }
.metric { flex: 1 1 180px; background: #f8fafc; border: 1px solid #e2e8f0; border-radius: 6px; padding: 14px; }
.metric .label { font-size: .8em; color: #64748b; text-transform: uppercase; }
.metric .value { font-size: 1.4em; font-weight: 600; margin-top: 4px; }
.bar-row { display: flex; align-items: center; margin: 6px 0; }
.bar-label { flex: 0 0 140px; font-size: .85em; color: #475569; }
.bar-track { flex: 1; background: #e2e8f0; border-radius: 4px; height: 18px; overflow: hidden; }
.bar-fill { background: #2c6e9b; height: 100%; }
.bar-value { flex: 0 0 120px; text-align: right; font-size: .85em; font-variant-numeric: tabular-nums; }
.group { margin: 12px 0 4px; font-weight: 600; font-size: .95em; }
.placeholder { color: #94a3b8; font-style: italic; }
table { width: 100%; border-collapse: collapse; font-size: .9em; }
th, td { text-align: left; padding: 8px 10px; border-bottom: 1px solid #e2e8f0; }
th { background: #f8fafc; color: #475569; }
td.amount { text-align: right; font-variant-numeric: tabular-nums; }
ul.insights { padding-left: 20px; }
ul.insights li { margin: 6px 0; }
footer { margin: 24px 0; text-align: center; color: #94a3b8; font-size: .8em; }
</style>
</head>
<body>
<div class="wrap">
<header>
<h1>University Finance Dashboard Report</h1>
<p>Generated for {{.User}} on {{.GeneratedAt}}</p>
<p>Department: {{.DeptContext}} &middot; Fiscal years: {{.YearsContext}} &middot; Categories: {{.CategoryContext}}</p>
</header>

<section>
<h2>Key Metrics</h2>
<div class="metrics">
<div class="metric"><div class="label">Total Spending</div><div class="value">{{.TotalSpending}}</div></div>
<div class="metric"><div class="label">Avg Monthly</div><div class="value">{{.AverageMonthly}}</div></div>
<div class="metric"><div class="label">Transactions</div><div class="value">{{.Transactions}}</div></div>
<div class="metric"><div class="label">Categories</div><div class="value">{{.Categories}}</div></div>
</div>
</section>

<section>
<h2>Monthly Spending Trend</h2>
{{template "bars" .Trend}}
</section>

<section>
<h2>Spending by Category</h2>
{{template "bars" .Breakdown}}
</section>

{{if .ShowDepartments}}
<section>
<h2>Department Comparison by Fiscal Year</h2>
{{template "bars" .Departments}}
</section>
{{end}}

<section>
<h2>{{.AnalysisCategory}} Deep Dive</h2>
{{template "bars" .DeepDiveTrend}}
</section>

<section>
<h2>{{.AnalysisCategory}} Seasonality</h2>
{{template "bars" .Seasonality}}
</section>

<section>
<h2>Insights</h2>
<ul class="insights">
{{range .InsightLines}}<li>{{.}}</li>
{{end}}</ul>
</section>

<section>
<h2>Recent Transactions</h2>
{{if .Recent}}
<table>
<tr><th>Date</th><th>Department</th><th>Category</th><th>Amount</th><th>Director</th></tr>
{{range .Recent}}<tr><td>{{.Date}}</td><td>{{.Department}}</td><td>{{.Category}}</td><td class="amount">{{.Amount}}</td><td>{{.Director}}</td></tr>
{{end}}</table>
{{else}}
<p class="placeholder">No transactions in the current selection</p>
{{end}}
</section>

<footer>University Finance Dashboard &middot; row access is enforced by database views</footer>
</div>
</body>
</html>

{{define "bars"}}
{{if .OK}}
{{range .Groups}}<div class="group">{{.Group}}</div>
{{range .Bars}}<div class="bar-row"><div class="bar-label">{{.Label}}</div><div class="bar-track"><div class="bar-fill" style="width: {{.Percent}}%"></div></div><div class="bar-value">{{.Value}}</div></div>
{{end}}{{end}}
{{range .Bars}}<div class="bar-row"><div class="bar-label">{{.Label}}</div><div class="bar-track"><div class="bar-fill" style="width: {{.Percent}}%"></div></div><div class="bar-value">{{.Value}}</div></div>
{{end}}
{{else}}
<p class="placeholder">{{.Placeholder}}</p>
{{end}}
{{end}}
`))

package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	gomponents "maragu.dev/gomponents"
	"maragu.dev/gomponents/html"

	"github.com/spektr-org/askcel/analyst"
	"github.com/spektr-org/askcel/engine"
	"github.com/spektr-org/askcel/sheet"
	"github.com/spektr-org/askcel/translator"
	"github.com/spektr-org/askcel/visual"
)

const (
	tabQuery     = "query"
	tabVisualize = "visualize"
	previewRows  = 5
)

type notice struct {
	Level string // info, success, warning, error
	Text  string
}

// page is everything one render of the app shows.
type page struct {
	Tab  string
	CSRF string

	Mode     analyst.Mode
	Provider string
	Model    string
	KeySet   bool

	FileName string
	Sheet    string
	Sheets   []string
	Summary  *sheet.Summary
	Preview  *engine.TableData
	Numeric  []string
	Columns  []string

	Question    string
	Answer      *analyst.Answer
	AnswerChart []byte

	Visual      visual.Request
	VisualChart []byte

	Notices []notice
}

func (p *page) notify(level, text string) {
	p.Notices = append(p.Notices, notice{Level: level, Text: text})
}

// page snapshots ws for r. The caller holds ws.mu.
func (ws *workspace) page(r *http.Request, tab string) *page {
	if tab != tabVisualize {
		tab = tabQuery
	}
	p := &page{
		Tab:      tab,
		CSRF:     csrfToken(r.Context()),
		Mode:     ws.analyst.Mode(),
		Provider: ws.provider,
		Model:    ws.model,
		KeySet:   ws.keySet,
		FileName: ws.fileName,
		Sheet:    ws.sheet,
		Question: ws.lastQuestion,
		Answer:   ws.last,
	}
	if p.Provider == "" {
		p.Provider = translator.ProviderOpenAI
	}
	if frame := ws.analyst.Frame(); frame != nil {
		summary := frame.Summary()
		p.Summary = &summary
		p.Sheets = frame.Sheets
		p.Preview = frame.HeadTable(previewRows)
		p.Numeric = visual.NumericColumns(frame)
		p.Columns = frame.Headers
	}
	if ws.last != nil && ws.last.Chart != nil {
		if b, err := ws.last.Chart.HTML(); err == nil {
			p.AnswerChart = b
		}
	}
	return p
}

func renderHTML(w http.ResponseWriter, status int, node gomponents.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}

func appPage(p *page) gomponents.Node {
	return gomponents.Group([]gomponents.Node{
		gomponents.Raw("<!doctype html>"),
		html.HTML(
			html.Lang("en"),
			html.Head(
				html.Meta(html.Charset("utf-8")),
				html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
				html.TitleEl(gomponents.Text("askcel")),
				html.Link(html.Rel("icon"), html.Href("data:,")),
				gomponents.Raw("<style>"+stylesheet+"</style>"),
			),
			html.Body(
				html.Main(html.Class("app"),
					sidebar(p),
					html.Section(html.Class("content"),
						html.Header(html.Class("header"),
							html.H1(gomponents.Text("Excel Data Analysis")),
							html.P(gomponents.Text("Upload a spreadsheet and ask questions about it in plain language.")),
						),
						notices(p.Notices),
						uploadCard(p),
						tabs(p),
						footer(),
					),
				),
			),
		),
	})
}

func sidebar(p *page) gomponents.Node {
	modeText := "Basic mode: keyword queries only"
	if p.Mode == analyst.ModeAI {
		modeText = "AI mode: " + p.Provider
		if p.Model != "" {
			modeText += " (" + p.Model + ")"
		}
	}
	var providers []gomponents.Node
	for _, name := range []string{translator.ProviderOpenAI, translator.ProviderGemini} {
		opt := []gomponents.Node{html.Value(name), gomponents.Text(name)}
		if name == p.Provider {
			opt = append(opt, html.Selected())
		}
		providers = append(providers, html.Option(opt...))
	}

	return html.Aside(html.Class("sidebar"),
		html.H2(gomponents.Text("Settings")),
		html.Form(html.Method("post"), html.Action("/settings"),
			csrfInput(p.CSRF),
			html.Label(gomponents.Text("Provider"), html.Select(html.Name("provider"), gomponents.Group(providers))),
			html.Label(gomponents.Text("API key"), html.Input(html.Type("password"), html.Name("api_key"), html.Placeholder("sk-..."))),
			html.Label(gomponents.Text("Model"), html.Input(html.Type("text"), html.Name("model"), html.Value(p.Model), html.Placeholder(translator.DefaultModel(p.Provider)))),
			html.Button(html.Type("submit"), gomponents.Text("Connect")),
		),
		html.P(html.Class("mode mode-"+string(p.Mode)), gomponents.Text(modeText)),
		html.Details(
			html.Summary(gomponents.Text("Example questions")),
			html.Ul(
				html.Li(gomponents.Text("What is the total revenue by region?")),
				html.Li(gomponents.Text("Show monthly sales as a line chart")),
				html.Li(gomponents.Text("Top 10 products by units")),
				html.Li(gomponents.Text("describe data")),
				html.Li(gomponents.Text("show average")),
			),
		),
	)
}

func notices(list []notice) gomponents.Node {
	nodes := make([]gomponents.Node, 0, len(list))
	for _, n := range list {
		nodes = append(nodes, html.Div(html.Class("notice notice-"+n.Level), gomponents.Text(n.Text)))
	}
	return gomponents.Group(nodes)
}

func uploadCard(p *page) gomponents.Node {
	form := html.Form(html.Method("post"), html.Action("/upload"), gomponents.Attr("enctype", "multipart/form-data"),
		csrfInput(p.CSRF),
		html.Input(html.Type("file"), html.Name("file"), gomponents.Attr("accept", ".xlsx,.xlsm,.xls,.csv")),
		sheetSelect(p),
		html.Button(html.Type("submit"), gomponents.Text("Upload")),
	)
	if p.Summary == nil {
		return html.Div(html.Class("card"),
			html.H2(gomponents.Text("Upload data")),
			form,
			html.P(html.Class("muted"), gomponents.Text("Supported formats: .xlsx, .xlsm, .xls, .csv")),
		)
	}

	return html.Div(html.Class("card"),
		html.H2(gomponents.Text("Upload data")),
		form,
		html.P(gomponents.Text("Loaded "), html.Strong(gomponents.Text(p.FileName)), gomponents.Text(" ["+p.Sheet+"]")),
		html.Div(html.Class("metrics"),
			metric("Rows", p.Summary.Rows),
			metric("Columns", p.Summary.Columns),
			metric("Numeric columns", p.Summary.NumericColumns),
			metric("Missing values", p.Summary.MissingValues),
		),
		html.Details(
			html.Summary(gomponents.Text("Data preview")),
			dataTable(p.Preview),
			html.Form(html.Method("post"), html.Action("/export/data"),
				csrfInput(p.CSRF),
				html.Button(html.Type("submit"), gomponents.Text("Download all rows as Excel")),
			),
		),
	)
}

// sheetSelect lets a workbook be reloaded on another sheet without uploading it again.
func sheetSelect(p *page) gomponents.Node {
	if len(p.Sheets) < 2 {
		return gomponents.Group(nil)
	}
	opts := make([]gomponents.Node, 0, len(p.Sheets))
	for _, name := range p.Sheets {
		opt := []gomponents.Node{html.Value(name), gomponents.Text(name)}
		if name == p.Sheet {
			opt = append(opt, html.Selected())
		}
		opts = append(opts, html.Option(opt...))
	}
	return html.Label(gomponents.Text("Sheet"), html.Select(html.Name("sheet"), gomponents.Group(opts)))
}

func metric(label string, value int) gomponents.Node {
	return html.Div(html.Class("metric"),
		html.Span(html.Class("metric-value"), gomponents.Text(strconv.Itoa(value))),
		html.Span(html.Class("metric-label"), gomponents.Text(label)),
	)
}

func tabs(p *page) gomponents.Node {
	tabLink := func(key, label, href string) gomponents.Node {
		class := "tab"
		if p.Tab == key {
			class += " active"
		}
		return html.A(html.Class(class), html.Href(href), gomponents.Text(label))
	}
	body := queryTab(p)
	if p.Tab == tabVisualize {
		body = visualizeTab(p)
	}
	return html.Div(html.Class("card"),
		html.Nav(html.Class("tabs"),
			tabLink(tabQuery, "Query Data", "/"),
			tabLink(tabVisualize, "Advanced Visualization", "/visualize"),
		),
		body,
	)
}

func queryTab(p *page) gomponents.Node {
	return html.Div(
		html.Form(html.Method("post"), html.Action("/ask"),
			csrfInput(p.CSRF),
			html.Textarea(html.Name("question"), html.Placeholder("e.g. What is the average revenue by region?"), html.Required(), gomponents.Text(p.Question)),
			html.Button(html.Type("submit"), gomponents.Text("Ask")),
		),
		answerCard(p),
	)
}

func answerCard(p *page) gomponents.Node {
	a := p.Answer
	if a == nil || a.Result == nil {
		return gomponents.Group(nil)
	}
	r := a.Result
	nodes := []gomponents.Node{html.Class("results")}
	if r.Title != "" {
		nodes = append(nodes, html.H2(gomponents.Text(r.Title)))
	}
	if a.Interpretation != nil && a.Interpretation.Summary != "" {
		nodes = append(nodes, html.P(html.Class("muted"), gomponents.Text(a.Interpretation.Summary)))
	}
	if r.Reply != "" {
		nodes = append(nodes, html.P(html.Class("reply"), gomponents.Text(r.Reply)))
	}
	if r.TableData != nil {
		nodes = append(nodes, dataTable(r.TableData))
	}
	if len(p.AnswerChart) > 0 {
		nodes = append(nodes, chartFrame(p.AnswerChart))
	}
	nodes = append(nodes,
		html.Div(html.Class("exports"),
			exportButton(p.CSRF, "csv", "Download CSV"),
			exportButton(p.CSRF, "xlsx", "Download Excel"),
			exportButton(p.CSRF, "pdf", "Download PDF"),
		),
		html.Details(
			html.Summary(gomponents.Text("Query details")),
			html.P(gomponents.Text("Answered in "+string(a.Mode)+" mode")),
			querySpec(a.QuerySpec),
		),
	)
	return html.Div(nodes...)
}

func querySpec(spec *engine.QuerySpec) gomponents.Node {
	if spec == nil {
		return gomponents.Group(nil)
	}
	b, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return gomponents.Group(nil)
	}
	return html.Pre(gomponents.Text(string(b)))
}

func exportButton(token, format, label string) gomponents.Node {
	return html.Form(html.Method("post"), html.Action("/export/"+format),
		csrfInput(token),
		html.Button(html.Type("submit"), gomponents.Text(label)),
	)
}

func visualizeTab(p *page) gomponents.Node {
	if p.Summary == nil {
		return html.P(html.Class("muted"), gomponents.Text("Upload a file to build charts."))
	}
	var types []gomponents.Node
	for _, ct := range visual.ChartTypes() {
		opt := []gomponents.Node{html.Value(ct.Key), gomponents.Text(ct.Label)}
		if ct.Key == p.Visual.Type {
			opt = append(opt, html.Selected())
		}
		types = append(types, html.Option(opt...))
	}
	var schemes []gomponents.Node
	for _, name := range visual.Schemes() {
		opt := []gomponents.Node{html.Value(name), gomponents.Text(name)}
		if name == p.Visual.Scheme {
			opt = append(opt, html.Selected())
		}
		schemes = append(schemes, html.Option(opt...))
	}

	nodes := []gomponents.Node{
		html.Form(html.Method("get"), html.Action("/visualize"), html.Class("chart-form"),
			html.Label(gomponents.Text("Chart type"), html.Select(html.Name("type"), gomponents.Group(types))),
			html.Label(gomponents.Text("X axis"), columnSelect("x", p.Columns, p.Visual.X, false)),
			html.Label(gomponents.Text("Y axis"), columnSelect("y", p.Numeric, p.Visual.Y, true)),
			html.Label(gomponents.Text("Color by"), columnSelect("color", p.Columns, p.Visual.Color, true)),
			html.Label(gomponents.Text("Title"), html.Input(html.Type("text"), html.Name("title"), html.Value(p.Visual.Title))),
			html.Label(gomponents.Text("Color scheme"), html.Select(html.Name("scheme"), gomponents.Group(schemes))),
			html.Button(html.Type("submit"), gomponents.Text("Generate chart")),
		),
	}
	if len(p.VisualChart) > 0 {
		nodes = append(nodes, chartFrame(p.VisualChart))
	}
	return html.Div(nodes...)
}

func columnSelect(name string, columns []string, selected string, optional bool) gomponents.Node {
	var opts []gomponents.Node
	if optional {
		opts = append(opts, html.Option(html.Value(""), gomponents.Text("(none)")))
	}
	for _, c := range columns {
		opt := []gomponents.Node{html.Value(c), gomponents.Text(c)}
		if c == selected {
			opt = append(opt, html.Selected())
		}
		opts = append(opts, html.Option(opt...))
	}
	return html.Select(html.Name(name), gomponents.Group(opts))
}

func chartFrame(doc []byte) gomponents.Node {
	return gomponents.El("iframe",
		html.Class("chart"),
		gomponents.Attr("title", "chart"),
		gomponents.Attr("sandbox", "allow-scripts"),
		gomponents.Attr("srcdoc", string(doc)),
	)
}

func dataTable(t *engine.TableData) gomponents.Node {
	if t == nil || len(t.Columns) == 0 {
		return gomponents.Group(nil)
	}
	head := make([]gomponents.Node, 0, len(t.Columns))
	for _, c := range t.Columns {
		label := c.Label
		if label == "" {
			label = c.Key
		}
		head = append(head, html.Th(gomponents.Text(label)))
	}
	rows := make([]gomponents.Node, 0, len(t.Rows)+1)
	for _, row := range t.Rows {
		cells := make([]gomponents.Node, 0, len(row))
		for i, v := range row {
			cells = append(cells, html.Td(alignClass(t, i), gomponents.Text(v)))
		}
		rows = append(rows, html.Tr(cells...))
	}
	if t.Summary != nil {
		cells := []gomponents.Node{html.Td(html.Strong(gomponents.Text(t.Summary.Label)))}
		for i, c := range t.Columns[1:] {
			cells = append(cells, html.Td(alignClass(t, i+1), html.Strong(gomponents.Text(t.Summary.Values[c.Key]))))
		}
		rows = append(rows, html.Tr(html.Class("total"), gomponents.Group(cells)))
	}
	return html.Div(html.Class("table-wrap"),
		html.Table(html.THead(html.Tr(head...)), html.TBody(rows...)),
	)
}

func alignClass(t *engine.TableData, i int) gomponents.Node {
	if i < len(t.Columns) && t.Columns[i].Align == "right" {
		return html.Class("num")
	}
	return gomponents.Group(nil)
}

func footer() gomponents.Node {
	return html.P(html.Class("footer muted"),
		gomponents.Text("Numbers are computed locally. The model only sees column names and distinct values."),
	)
}

// errorPage is the plain page for failures outside a session.
func errorPage(status int, msg string) gomponents.Node {
	return html.HTML(
		html.Head(html.TitleEl(gomponents.Text(http.StatusText(status)))),
		html.Body(html.Div(html.Class("notice notice-error"), gomponents.Text(msg))),
	)
}

const stylesheet = `
body{margin:0;font-family:system-ui,sans-serif;color:#1f2328;background:#f6f8fa}
.app{display:flex;min-height:100vh}
.sidebar{width:260px;padding:1rem;background:#fff;border-right:1px solid #d0d7de}
.sidebar label,.chart-form label{display:block;margin:.5rem 0;font-size:.9rem}
.sidebar input,.sidebar select{width:100%;box-sizing:border-box}
.content{flex:1;padding:1rem 2rem;max-width:1100px}
.card{background:#fff;border:1px solid #d0d7de;border-radius:6px;padding:1rem;margin:1rem 0}
.metrics{display:flex;gap:1rem}
.metric{flex:1;padding:.5rem;border:1px solid #d0d7de;border-radius:6px;text-align:center}
.metric-value{display:block;font-size:1.5rem;font-weight:600}
.metric-label{font-size:.8rem;color:#656d76}
.tabs{display:flex;gap:1rem;border-bottom:1px solid #d0d7de;margin-bottom:1rem}
.tab{padding:.5rem 0;text-decoration:none;color:#656d76}
.tab.active{color:#0969da;border-bottom:2px solid #0969da}
textarea{width:100%;min-height:4rem;box-sizing:border-box}
.table-wrap{overflow-x:auto}
table{border-collapse:collapse;width:100%;font-size:.9rem}
th,td{border:1px solid #d0d7de;padding:.3rem .5rem;text-align:left}
td.num{text-align:right}
tr.total td{background:#f6f8fa}
iframe.chart{width:100%;height:460px;border:0}
.exports{display:flex;gap:.5rem;margin-top:1rem}
.notice{padding:.6rem 1rem;border-radius:6px;margin:.5rem 0}
.notice-info{background:#ddf4ff}.notice-success{background:#dafbe1}
.notice-warning{background:#fff8c5}.notice-error{background:#ffebe9}
.mode{font-size:.85rem;padding:.4rem;border-radius:6px;background:#fff8c5}
.mode-ai{background:#dafbe1}
.muted{color:#656d76;font-size:.9rem}
`

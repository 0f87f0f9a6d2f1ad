package settings

import "html/template"

// Input templates are keyed by strategy name; the row and container wrap
// whatever the strategy produced.
const formTemplates = `
{{define "container_open"}}<div class="sfwd sfwd_options {{.}}settings">{{end}}
{{define "container_close"}}</div>{{end}}

{{define "row"}}<div class="sfwd_input {{.RowClass}}" id="{{.StorageKey}}"{{if .Hidden}} style="display:none"{{end}}{{with .ShowIf}} data-show-if="{{.}}"{{end}}>
{{- if .HasLabel}}<span class="sfwd_option_label" style="text-align:{{.Align}};vertical-align:top;">
{{- if .HelpText}}<a class="sfwd_help_text_link" style="cursor:pointer;" title="Click for Help!" data-toggle="{{.StorageKey}}_tip"><label class="sfwd_label textinput">{{.Title}}</label></a>
{{- else}}{{.Title}}{{end}}</span>{{end -}}
<span class="sfwd_option_input"><div class="sfwd_option_div"{{with .ID}} id="{{.}}"{{end}}>{{.Input}}</div>
{{- if and .HasLabel .HelpText}}<div class="sfwd_help_text_div" style="display:none" id="{{.StorageKey}}_tip"><label class="sfwd_help_text">{{.HelpText}}</label></div>{{end -}}
</span><p style="clear:left"></p></div>
{{end}}

{{define "attrs"}}{{with .Class}} class="{{.}}"{{end}}{{with .Style}} style="{{.}}"{{end}}{{if .ReadOnly}} readonly{{end}}{{if .Disabled}} disabled{{end}}{{with .Size}} size="{{.}}"{{end}}{{with .Placeholder}} placeholder="{{.}}"{{end}}{{end}}

{{define "input"}}<input name="{{.Name}}" type="{{.InputType}}"{{template "attrs" .}} value="{{.Value}}" />
{{end}}

{{define "checkbox"}}<input name="{{.Name}}" type="checkbox"{{template "attrs" .}}{{with .CheckedValue}} value="{{.}}"{{end}}{{if .Checked}} checked{{end}} />
{{end}}

{{define "textarea"}}<textarea name="{{.Name}}"{{template "attrs" .}}{{with .Rows}} rows="{{.}}"{{end}}{{with .Cols}} cols="{{.}}"{{end}}>{{.Value}}</textarea>{{end}}

{{define "number"}}<input name="{{.Name}}" type="number"{{template "attrs" .}}{{with .Min}} min="{{.}}"{{end}}{{with .Step}} step="{{.}}"{{end}} value="{{.Value}}" />
{{end}}

{{define "image"}}<input class="sfwd_upload_image_button" type="button" value="Upload Image" style="float:left;" /><input class="sfwd_upload_image_label" name="{{.Name}}" type="text" readonly{{with .Style}} style="{{.}}"{{end}}{{with .Placeholder}} placeholder="{{.}}"{{end}} value="{{.Value}}" size="57" />
{{end}}

{{define "select"}}<select name="{{.Name}}"{{template "attrs" .}}{{if .Multiple}} multiple{{end}}>
{{- range .Groups}}{{if .Label}}
	<optgroup label="{{.Label}}">{{range .Items}}
	<option{{if .Selected}} selected{{end}} value="{{.Value}}">{{.Label}}</option>{{end}}
	</optgroup>{{else}}{{range .Items}}
	<option{{if .Selected}} selected{{end}} value="{{.Value}}">{{.Label}}</option>{{end}}{{end}}{{end}}
</select>{{end}}

{{define "choices"}}{{$type := .InputType}}{{$name := .Name}}
{{- range .Groups}}{{if .Label}}	<b>{{.Label}}</b><br>
{{end}}{{range .Items}}	<label class="sfwd_option_setting_label"><input type="{{$type}}"{{if .Selected}} checked{{end}} name="{{$name}}" value="{{.Value}}"> {{.Label}}</label>
{{end}}{{end}}{{end}}

{{define "date"}}<div class="ld_date_selector"><span class="screen-reader-text">Month</span><select class="ld_date_mm" name="{{.Name}}[mm]"><option value=""></option>
{{- range .Date.Months}}
	<option value="{{.Value}}" data-text="{{.Label}}"{{if .Selected}} selected{{end}}>{{.Value}}-{{.Label}}</option>{{end}}
</select> <span class="screen-reader-text">Day</span><input type="number" placeholder="DD" min="1" max="31" class="ld_date_jj" name="{{.Name}}[jj]" value="{{.Date.Day}}" size="2" maxlength="2" autocomplete="off" />, <span class="screen-reader-text">Year</span><input type="number" placeholder="YYYY" min="0000" max="9999" class="ld_date_aa" name="{{.Name}}[aa]" value="{{.Date.Year}}" size="4" maxlength="4" autocomplete="off" /> @ <span class="screen-reader-text">Hour</span><input type="number" min="0" max="23" placeholder="HH" class="ld_date_hh" name="{{.Name}}[hh]" value="{{.Date.Hour}}" size="2" maxlength="2" autocomplete="off" />:<span class="screen-reader-text">Minute</span><input type="number" min="0" max="59" placeholder="MM" class="ld_date_mn" name="{{.Name}}[mn]" value="{{.Date.Minute}}" size="2" maxlength="2" autocomplete="off" /></div>{{end}}

{{define "html"}}{{.Markup}}{{end}}

{{define "counter"}}<input readonly type="text" name="length{{.Counter}}" size="3" maxlength="3" style="width:53px;height:23px;margin:0px;padding:0px;" value="{{.Length}}" /> characters. Most search engines use a maximum of {{.CountSize}} chars for the {{.CountLabel}}.{{end}}

{{define "tabs"}}<div class="sfwd_tabs_div"><label class="sfwd_head_nav">
{{- range .}}<a class="sfwd_head_nav_tab sfwd_head_nav_{{if not .Active}}in{{end}}active" href="{{.Href}}">{{.Name}}</a>{{end -}}
</label></div>{{end}}

{{define "error"}}<div class="sfwd_module error" style="text-align:center;">{{.}}</div>{{end}}
`

var baseTemplates = template.Must(template.New("settings").Parse(formTemplates))

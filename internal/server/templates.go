package server

import "html/template"

var indexTemplate = template.Must(template.New("index").Parse(`
<!DOCTYPE html>
<html>
<head>
    <title>Wine Quality Prediction API</title>
    <meta charset="UTF-8">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 800px; margin: 0 auto; }
        .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 20px; border-radius: 10px; margin-bottom: 20px; }
        .header h1 { margin: 0; text-align: center; }
        .card { background: white; border-radius: 10px; padding: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); margin-bottom: 20px; }
        code { background-color: #f8f9fa; padding: 2px 6px; border-radius: 4px; }
        li { padding: 4px 0; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>Wine Quality Prediction API</h1></div>
        <div class="card">
            <h3>Endpoints</h3>
            <ul>
                <li><code>POST /predict</code> &mdash; predict wine quality from a feature vector</li>
                <li><code>GET /check_drift</code> &mdash; drift report as JSON</li>
                <li><code>GET /drift_report</code> &mdash; drift report as HTML</li>
                <li><code>GET /data_profiling</code> &mdash; pre-generated EDA report</li>
                <li><code>GET /inference_log.csv</code> &mdash; inference log export</li>
                <li><code>GET /ws/live</code> &mdash; live prediction stream (WebSocket)</li>
                <li><code>GET /healthz</code> &mdash; health check</li>
            </ul>
        </div>
    </div>
</body>
</html>
`))

var driftReportTemplate = template.Must(template.New("drift").Parse(`
<!DOCTYPE html>
<html>
<head>
    <title>Data Drift Report</title>
    <meta charset="UTF-8">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 1000px; margin: 0 auto; }
        .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 20px; border-radius: 10px; margin-bottom: 20px; }
        .header h1 { margin: 0; text-align: center; }
        .card { background: white; border-radius: 10px; padding: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); margin-bottom: 20px; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 8px; border-bottom: 1px solid #eee; }
        th { background-color: #f8f9fa; }
        .drifted { color: #dc3545; font-weight: bold; }
        .stable { color: #28a745; font-weight: bold; }
        .banner { padding: 12px; border-radius: 8px; font-weight: bold; text-align: center; }
        .banner-ok { background-color: #d4edda; color: #155724; }
        .banner-alert { background-color: #f8d7da; color: #721c24; }
        .banner-warn { background-color: #fff3cd; color: #856404; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>Data Drift Report</h1></div>
        <div class="card">
            {{if .InsufficientData}}
            <div class="banner banner-warn">Insufficient data: only {{.SampleCount}} logged predictions available</div>
            {{else if .OverallDriftDetected}}
            <div class="banner banner-alert">Drift detected &mdash; drift share {{printf "%.2f" .DriftShare}}</div>
            {{else}}
            <div class="banner banner-ok">No drift detected</div>
            {{end}}
            <p>Generated at {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}} over {{.SampleCount}} recent predictions.</p>
        </div>
        {{if not .InsufficientData}}
        <div class="card">
            <table>
                <tr><th>Feature</th><th>Statistic</th><th>Value</th><th>Threshold</th><th>Status</th></tr>
                {{range $name, $fd := .Features}}
                <tr>
                    <td>{{$name}}</td>
                    <td>{{$fd.Statistic}}</td>
                    <td>{{printf "%.4f" $fd.Value}}</td>
                    <td>{{printf "%.4f" $fd.Threshold}}</td>
                    <td>{{if $fd.Drifted}}<span class="drifted">DRIFTED</span>{{else}}<span class="stable">stable</span>{{end}}</td>
                </tr>
                {{end}}
            </table>
        </div>
        {{end}}
    </div>
</body>
</html>
`))

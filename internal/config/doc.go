// Package config loads billform's configuration.
//
// Configuration lives in billform.yaml (or billform.yml, billform.json) in
// the working directory. Every field has a default, so the file is
// optional; BILLFORM_* environment variables override the file.
//
//	server:
//	  address: ":8080"
//	  shutdown_timeout: 15s
//	  max_sessions: 500
//	  stylesheets: ["/static/app.css"]
//	  session:
//	    event_rate: 50
//	    event_burst: 100
//	locale:
//	  dir: ./locales
//	  watch: true
//	export:
//	  store: s3
//	  s3:
//	    bucket: receipts
//	    region: ap-southeast-1
//	metrics:
//	  enabled: true
//	log:
//	  level: info
//	  format: json
package config

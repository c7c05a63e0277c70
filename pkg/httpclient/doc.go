// Package httpclient fetches step source and directory indexes from
// the step repository over HTTP or mutual-TLS HTTPS. Downloads are
// written atomically: body streams to "<dest>.<pid>", is fsynced and
// closed, then renamed onto dest. Index additionally parses three
// directory listing formats into a common Entry shape.
package httpclient

// Package workers sizes the encoder concurrency limit.
//
// Every conversion request owns one encoder child process. The transcoder
// bounds how many of those run at once using the count returned here, which
// is derived from GOMAXPROCS so that container CPU limits are respected:
//
//	slots := workers.ForMixed(0)
//
// Operators can pin the value with ENCODER_WORKERS:
//
//	env:
//	- name: ENCODER_WORKERS
//	  value: "4"
package workers

// Package authority talks to the government tax-document reception service.
//
// It defines the abstract Client consumed by the delivery engine, the HTTP
// implementation with its production/test environments, the mapping from
// authority status codes to engine statuses, and the error taxonomy that
// separates transient connectivity failures from permanent payload
// rejections.
package authority

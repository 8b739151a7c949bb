// Package service provides domain services for TokDrop.
//
// Domain services contain the business logic and orchestrate operations
// on domain models. Each service declares the storage and platform ports
// it needs (ports.go); infrastructure packages implement them.
//
//   - BatchService: opens, fills and finalizes upload batches
//   - Gate: decides whether a requester may receive a token's files
//   - Deliverer: sends a batch's files and schedules their retraction
//   - Retractor: deletes delivered messages once their delay elapses
//   - Publisher: turns a finalized batch into a (shortened) deep link
package service

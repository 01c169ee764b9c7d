// Package clock provides the vector clock used to order database versions
// across machines. Each machine only ever increments its own counter; the
// four-way Compare decides whether two versions are causally ordered or
// simultaneous (conflicting).
package clock

/*
Package messages defines the envelope exchanged between agents through
the broker.

An Envelope is an immutable record: who sent it, who it is for (or
nobody in particular, which means broadcast), what kind of message it
is, and an opaque ordered payload the broker never looks inside. Every
envelope gets a time-ordered id at creation and a timestamp, so history
queries and log output line up without extra bookkeeping.

Envelopes taking part in a request/response exchange additionally carry
a correlation id, stamped by the broker at send time. The invariant is
strict: a correlation id is present if and only if the envelope demands
a response.

Payloads preserve key insertion order end to end, including through
JSON, so a payload built field by field renders the same way on the
dashboard as it was written by the producing agent.
*/
package messages

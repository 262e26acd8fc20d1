// Package tickerid parses exchange market tickers into structured game
// identities the resolver can match against the internal game registry.
//
// Two grammars are understood:
//
//   - Game markets: KX<SPORT>GAME-<YY><MON><DD><AWAYHOME>-<SIDE>, e.g.
//     KXNBAGAME-26FEB05CHAHOU-HOU. The team block concatenates both codes
//     with no separator; splitting it is length-driven.
//   - Single-team markets: <SERIES>-<YY>-<CODE>, e.g. KXSB-26-SEA. These
//     name one team only and take their game date from the market close
//     time, with the year overridden by the ticker's year token.
//
// Parsing is best-effort. A ticker that fits neither grammar reports
// ok=false and is skipped upstream; the parser never guesses a team split
// it cannot justify.
package tickerid

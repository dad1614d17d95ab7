package compiler

import "text/template"

var funcs = template.FuncMap{
	"squote": SingleQuote,
	"num":    FormatNumber,
}

var trackTmpl = template.Must(template.New("track").Funcs(funcs).Parse(`function () {

    var player,
        animation,
        isInited = false,
        animations = [],
        paramKeys = {{.ParamKeys}},
        options = {{.Options}},
        elems = {{if .Selectors}}document.querySelectorAll({{squote .Selectors}}){{else}}[]{{end}};

    for (var i = 0; i < elems.length; ++i) {
        for (var j = 0; j < paramKeys.length; ++j) {

            animations.push(new Animation(elems[i], paramKeys[j], options));
        }
    }

    animation = new AnimationGroup(animations);

    return {

        play: function () {

            if (!isInited) {

                player = document.timeline.play(animation);
                isInited = true;
            }
            else {
                player.play();
            }
        },
        pause: function () {

            if (!player) {
                return;
            }

            player.pause();
        },
        seek: function (time) {

            if (!player) {
                return;
            }

            player.currentTime = time;
        }
    };
}`))

var triggersTmpl = template.Must(template.New("triggers").Funcs(funcs).Parse(`var triggers = [{{range $i, $t := .}}{{if $i}},{{end}}
        {time: {{num $t.Time}}, fn: function () {
{{$t.Script}}
        }}{{end}}];

    function createTriggerClock() {

        var lastTime = -1,
            inclusive = true;

        return {
            seek: function (time) {

                lastTime = time;
                inclusive = true;
            },
            tick: function (time, length) {

                if (time < lastTime) {

                    fire(lastTime, length, inclusive);
                    fire(0, time, true);
                }
                else {
                    fire(lastTime, time, inclusive);
                }

                lastTime = time;
                inclusive = false;
            }
        };

        function fire(from, to, inclusive) {

            triggers.forEach(function (trigger) {

                var after = inclusive ? trigger.time >= from : trigger.time > from;

                if (after && trigger.time <= to) {
                    trigger.fn();
                }
            });
        }
    }`))

var moduleTmpl = template.Must(template.New("module").Funcs(funcs).Parse(`;(function (root) {
    'use strict';

    /**@amsave*/
    var SAVEJSON = {{squote .SaveJSON}};

    var sequPlayerGens = [{{range $i, $f := .Factories}}{{if $i}},
{{end}}{{$f}}{{end}}];

    {{.Triggers}}

    root.am = root.am || {};
    root.am.pageScripts = root.am.pageScripts || {};

    var reg = root.am.pageScripts[{{squote .Name}}] = {

        createPlayer: function (opt) {

            var sequencePlayers = [],
                triggerClock = createTriggerClock(),
                playing = false,
                startTime = 0,
                length = {{num .Length}},
                startStamp = 0,
                rafId;

            sequPlayerGens.forEach(function (create) {

                sequencePlayers.push(create(opt));
            });

            return {
                play: function () {

                    callPlayers('play');

                    if (playing) {
                        return;
                    }

                    playing = true;
                    startStamp = now();

                    if (triggers.length) {
                        tick();
                    }
                },
                pause: function () {

                    callPlayers('pause');

                    if (!playing) {
                        return;
                    }

                    playing = false;
                    startTime += Math.round(now() - startStamp);
                    root.cancelAnimationFrame(rafId);
                },
                seek: function (time) {

                    callPlayers('seek', time);

                    startTime = time;
                    startStamp = now();
                    triggerClock.seek(time);
                },
            };

            function tick() {

                rafId = root.requestAnimationFrame(tick);
                var time = startTime + Math.round(now() - startStamp);

                triggerClock.tick(length > 0 ? time % length : time, length);
            }

            function now() {

                return root.performance ? root.performance.now() : Date.now();
            }

            function callPlayers(fnName, arg1) {

                sequencePlayers.forEach(function (sequencePlayer) {

                    sequencePlayer[fnName].call(null, arg1);
                });
            }
        },

        saveJson: SAVEJSON,
    };


    if (typeof define === 'function' && define.amd) {

        define(function () {
            return reg;
        });
    }

    if (typeof exports === 'object') {

        module.exports = reg;
    }
}(this));
`))

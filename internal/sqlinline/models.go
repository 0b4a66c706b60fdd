package sqlinline

const QSelectModelTriggerWords = `--sql 5c2df8b1-64aa-4f0e-9d15-83b7c60e21af
select id, coalesce(trigger_word, '')
from model_assets
where status = 'ready';
`
